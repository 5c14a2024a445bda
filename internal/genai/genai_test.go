package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type mockChatService struct {
	resp *openai.ChatCompletion
	err  error

	gotMessages int
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.gotMessages = len(params.Messages)
	return m.resp, m.err
}

func TestGenerateWithMessages(t *testing.T) {
	mock := &mockChatService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "hello"}},
			},
		},
	}
	c := &Client{chat: mock, model: DefaultModel}

	out, err := c.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("sys"),
		openai.UserMessage("user"),
	})
	if err != nil {
		t.Fatalf("GenerateWithMessages failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("got %q, want hello", out)
	}
	if mock.gotMessages != 2 {
		t.Errorf("sent %d messages, want 2", mock.gotMessages)
	}
}

func TestGenerateWithMessagesError(t *testing.T) {
	mock := &mockChatService{err: errors.New("boom")}
	c := &Client{chat: mock, model: DefaultModel}

	if _, err := c.GenerateWithMessages(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateWithMessagesNoChoices(t *testing.T) {
	mock := &mockChatService{resp: &openai.ChatCompletion{}}
	c := &Client{chat: mock, model: DefaultModel}

	if _, err := c.GenerateWithMessages(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := NewClient(WithAPIKey("test-key")); err != nil {
		t.Fatalf("NewClient with explicit key failed: %v", err)
	}
}
