// Package interpret turns free-form user text into a structured hint about
// the user's intent for the current conversation step.
//
// The interpreter is advisory. Its output never drives a state transition by
// itself: timeouts, transport errors, and malformed model output all collapse
// to an UNKNOWN interpretation, and the engine escalates or re-prompts based
// on its own counters.
package interpret

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/megurit/onboardbot/internal/genai"
	"github.com/megurit/onboardbot/internal/models"
)

// DefaultTimeout bounds a single interpretation call.
const DefaultTimeout = 5 * time.Second

const systemPrompt = `You classify a single WhatsApp message from a rental applicant going through onboarding.
Reply with exactly one JSON object and nothing else:
{"intent": "CONFIRM" | "DENY" | "DATA" | "UNKNOWN", "value": "<extracted answer or empty>", "confidence": <0.0-1.0>}
"CONFIRM" and "DENY" are for yes/no answers to the pending question.
"DATA" means the message answers the pending question with a value; put the normalized answer in "value".
"UNKNOWN" is for anything else. Messages may be in Hebrew or English.`

// Interpreter asks the language model what the user meant.
type Interpreter struct {
	client  genai.ClientInterface
	timeout time.Duration
}

// Opts holds interpreter configuration.
type Opts struct {
	Timeout time.Duration
}

// Option configures the interpreter.
type Option func(*Opts)

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewInterpreter creates an interpreter backed by the given client.
func NewInterpreter(client genai.ClientInterface, opts ...Option) *Interpreter {
	o := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Interpreter{client: client, timeout: o.Timeout}
}

// interpretation mirrors the JSON shape the model is asked to produce.
type interpretation struct {
	Intent     string  `json:"intent"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Interpret classifies raw against the pending question for field in state.
// It never returns a non-nil error together with a usable interpretation:
// on any failure the result is Unknown and the error describes the cause.
func (i *Interpreter) Interpret(ctx context.Context, state models.ConversationState, field models.Field, raw string) (models.Interpretation, error) {
	if i.client == nil {
		return unknown(), fmt.Errorf("no interpretation client configured: %w", models.ErrInterpreterFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Conversation step: %s\nPending question field: %s\nMessage: %s", state, field, raw)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}

	out, err := i.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Debug("Interpreter Interpret failed", "state", state, "field", field, "error", err)
		return unknown(), fmt.Errorf("interpretation call failed: %w", models.ErrInterpreterFailed)
	}

	parsed, err := parseInterpretation(out)
	if err != nil {
		slog.Debug("Interpreter Interpret got malformed output", "state", state, "field", field, "error", err)
		return unknown(), fmt.Errorf("malformed interpretation output: %w", models.ErrInterpreterFailed)
	}

	slog.Debug("Interpreter Interpret succeeded",
		"state", state, "field", field, "intent", parsed.Intent, "confidence", parsed.Confidence)
	return parsed, nil
}

// parseInterpretation validates the model output against the expected shape.
// Models sometimes wrap JSON in a code fence; strip that before decoding.
func parseInterpretation(out string) (models.Interpretation, error) {
	cleaned := strings.TrimSpace(out)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw interpretation
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return unknown(), fmt.Errorf("decode interpretation: %w", err)
	}

	intent, ok := parseIntent(raw.Intent)
	if !ok {
		return unknown(), fmt.Errorf("unrecognized intent %q", raw.Intent)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return unknown(), fmt.Errorf("confidence %v out of range", raw.Confidence)
	}
	return models.Interpretation{
		Intent:     intent,
		Value:      strings.TrimSpace(raw.Value),
		Confidence: raw.Confidence,
	}, nil
}

func parseIntent(s string) (models.IntentKind, bool) {
	switch models.IntentKind(strings.ToUpper(strings.TrimSpace(s))) {
	case models.IntentConfirm:
		return models.IntentConfirm, true
	case models.IntentDeny:
		return models.IntentDeny, true
	case models.IntentData:
		return models.IntentData, true
	case models.IntentUnknown:
		return models.IntentUnknown, true
	default:
		return models.IntentUnknown, false
	}
}

func unknown() models.Interpretation {
	return models.Interpretation{Intent: models.IntentUnknown}
}
