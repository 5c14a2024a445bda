// Package genai wraps the OpenAI API for advisory interpretation of user
// replies. The rest of the service treats it as a hint source only: every
// call site must degrade to a deterministic fallback when generation fails.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ClientInterface is the surface consumed by interpretation and document
// classification. Kept small so tests can substitute a canned client.
type ClientInterface interface {
	// GenerateWithMessages runs one chat completion over the given messages
	// and returns the assistant text.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// chatCompletionService is the slice of the OpenAI SDK the client depends on.
type chatCompletionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets an explicit API key instead of reading the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client calls the OpenAI chat completion API.
type Client struct {
	chat  chatCompletionService
	model openai.ChatModel
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a client. The API key comes from options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}

	cli := openai.NewClient(option.WithAPIKey(o.APIKey))
	slog.Debug("GenAI NewClient succeeded", "model", o.Model)
	return &Client{chat: &cli.Chat.Completions, model: o.Model}, nil
}

// GenerateWithMessages runs a single chat completion and returns the first
// choice's content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Debug("GenAI GenerateWithMessages failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	slog.Debug("GenAI GenerateWithMessages succeeded", "messages", len(messages))
	return resp.Choices[0].Message.Content, nil
}
