package document

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/megurit/onboardbot/internal/models"
)

type mockGenAI struct {
	out string
	err error
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return m.out, m.err
}

func TestIncomeDocumentFromModel(t *testing.T) {
	c := NewClassifier(&mockGenAI{out: "PNL"})
	if got := c.IncomeDocument(context.Background(), "מורה"); got != models.DocumentPNL {
		t.Errorf("got %s, want pnl", got)
	}

	c = NewClassifier(&mockGenAI{out: "PAYSLIPS"})
	if got := c.IncomeDocument(context.Background(), "עצמאי"); got != models.DocumentPayslips {
		t.Errorf("got %s, want payslips (model answer wins)", got)
	}
}

func TestIncomeDocumentKeywordFallback(t *testing.T) {
	c := NewClassifier(&mockGenAI{err: errors.New("api down")})

	if got := c.IncomeDocument(context.Background(), "עצמאי בתחום השיפוצים"); got != models.DocumentPNL {
		t.Errorf("got %s, want pnl", got)
	}
	if got := c.IncomeDocument(context.Background(), "freelance designer"); got != models.DocumentPNL {
		t.Errorf("got %s, want pnl", got)
	}
	if got := c.IncomeDocument(context.Background(), "teacher"); got != models.DocumentPayslips {
		t.Errorf("got %s, want payslips", got)
	}
}

func TestIncomeDocumentUnrecognizedModelAnswer(t *testing.T) {
	c := NewClassifier(&mockGenAI{out: "I am not sure"})
	if got := c.IncomeDocument(context.Background(), "business owner"); got != models.DocumentPNL {
		t.Errorf("got %s, want pnl via keyword fallback", got)
	}
}

func TestIncomeDocumentNilClient(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.IncomeDocument(context.Background(), "nurse"); got != models.DocumentPayslips {
		t.Errorf("got %s, want payslips", got)
	}
}

func TestSequence(t *testing.T) {
	seq := Sequence(models.DocumentPNL)
	want := []models.DocumentType{
		models.DocumentIDCard,
		models.DocumentSephach,
		models.DocumentPNL,
		models.DocumentBankStatements,
	}
	if len(seq) != len(want) {
		t.Fatalf("len = %d", len(seq))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("seq[%d] = %s, want %s", i, seq[i], want[i])
		}
	}

	fields := FieldSequence(models.DocumentPayslips)
	if fields[2] != models.FieldPayslips {
		t.Errorf("fields[2] = %s, want payslips", fields[2])
	}
}

func TestAcceptingProcessor(t *testing.T) {
	res, err := AcceptingProcessor{}.Process(context.Background(), &models.Tenant{}, models.DocumentIDCard, "https://cdn.example/id.jpg")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !res.Valid || res.Type != models.DocumentIDCard || res.FileURL == "" {
		t.Errorf("got %+v", res)
	}
}
