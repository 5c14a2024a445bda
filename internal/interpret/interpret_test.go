package interpret

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/megurit/onboardbot/internal/models"
)

type mockGenAI struct {
	out string
	err error

	delay time.Duration
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.out, m.err
}

func TestInterpretWellFormed(t *testing.T) {
	mock := &mockGenAI{out: `{"intent": "DATA", "value": "teacher", "confidence": 0.9}`}
	it := NewInterpreter(mock)

	res, err := it.Interpret(context.Background(), models.StatePersonalInfo, models.FieldOccupation, "I work as a teacher")
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if res.Intent != models.IntentData || res.Value != "teacher" || res.Confidence != 0.9 {
		t.Errorf("got %+v", res)
	}
}

func TestInterpretCodeFencedOutput(t *testing.T) {
	mock := &mockGenAI{out: "```json\n{\"intent\": \"CONFIRM\", \"value\": \"\", \"confidence\": 1}\n```"}
	it := NewInterpreter(mock)

	res, err := it.Interpret(context.Background(), models.StateConfirmation, "", "yes sure")
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if res.Intent != models.IntentConfirm {
		t.Errorf("got intent %s, want CONFIRM", res.Intent)
	}
}

func TestInterpretMalformedOutputIsUnknown(t *testing.T) {
	cases := []string{
		"not json at all",
		`{"intent": "MAYBE", "value": "", "confidence": 0.5}`,
		`{"intent": "DATA", "value": "x", "confidence": 3}`,
	}
	for _, out := range cases {
		it := NewInterpreter(&mockGenAI{out: out})
		res, err := it.Interpret(context.Background(), models.StatePersonalInfo, models.FieldOccupation, "hi")
		if !errors.Is(err, models.ErrInterpreterFailed) {
			t.Errorf("output %q: err = %v, want ErrInterpreterFailed", out, err)
		}
		if res.Intent != models.IntentUnknown {
			t.Errorf("output %q: intent = %s, want UNKNOWN", out, res.Intent)
		}
	}
}

func TestInterpretTimeoutIsUnknown(t *testing.T) {
	mock := &mockGenAI{out: `{"intent": "DATA", "value": "x", "confidence": 1}`, delay: 100 * time.Millisecond}
	it := NewInterpreter(mock, WithTimeout(10*time.Millisecond))

	res, err := it.Interpret(context.Background(), models.StatePersonalInfo, models.FieldOccupation, "hi")
	if !errors.Is(err, models.ErrInterpreterFailed) {
		t.Errorf("err = %v, want ErrInterpreterFailed", err)
	}
	if res.Intent != models.IntentUnknown {
		t.Errorf("intent = %s, want UNKNOWN", res.Intent)
	}
}

func TestInterpretTransportErrorIsUnknown(t *testing.T) {
	it := NewInterpreter(&mockGenAI{err: errors.New("api down")})
	res, err := it.Interpret(context.Background(), models.StateGreeting, "", "hello")
	if !errors.Is(err, models.ErrInterpreterFailed) {
		t.Errorf("err = %v, want ErrInterpreterFailed", err)
	}
	if res.Intent != models.IntentUnknown {
		t.Errorf("intent = %s, want UNKNOWN", res.Intent)
	}
}

func TestInterpretNilClient(t *testing.T) {
	it := NewInterpreter(nil)
	if _, err := it.Interpret(context.Background(), models.StateGreeting, "", "hi"); !errors.Is(err, models.ErrInterpreterFailed) {
		t.Errorf("err = %v, want ErrInterpreterFailed", err)
	}
}
