// Package document decides which documents a tenant must provide and
// validates uploads through a pluggable processor.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/megurit/onboardbot/internal/genai"
	"github.com/megurit/onboardbot/internal/models"
)

// Processor validates an uploaded document and extracts its data. The engine
// consumes only the structured result; raw bytes never flow through it.
type Processor interface {
	Process(ctx context.Context, tenant *models.Tenant, doc models.DocumentType, fileURL string) (*models.DocumentExtractionResult, error)
}

// Classifier decides whether a tenant's occupation calls for payslips or a
// profit and loss statement in the document sequence.
type Classifier struct {
	client genai.ClientInterface
}

// NewClassifier creates a classifier. A nil client disables the model path
// and leaves only the keyword fallback.
func NewClassifier(client genai.ClientInterface) *Classifier {
	return &Classifier{client: client}
}

const classifySystemPrompt = `You determine the income document a rental applicant must provide based on their stated occupation.
1. EMPLOYED (works for an employer, receives a salary) -> PAYSLIPS
2. SELF-EMPLOYED or BUSINESS OWNER (runs their own business) -> PNL (Profit & Loss statement)
The occupation may be in Hebrew or English.
Return ONLY one word: "PAYSLIPS" or "PNL"`

// selfEmployedKeywords drive the deterministic fallback when the model is
// unavailable or returns something unrecognizable.
var selfEmployedKeywords = []string{
	"עצמאי", "עצמאית", "עסק", "self-employed", "self employed",
	"business", "freelance", "freelancer", "entrepreneur", "consultant",
}

// IncomeDocument returns the document type required for occupation. The model
// answer is advisory; any failure falls back to keyword matching, and the
// default for an unrecognized occupation is payslips.
func (c *Classifier) IncomeDocument(ctx context.Context, occupation string) models.DocumentType {
	if c.client != nil {
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(fmt.Sprintf("Occupation: %s", occupation)),
		}
		out, err := c.client.GenerateWithMessages(ctx, messages)
		if err == nil {
			cleaned := strings.ToUpper(strings.TrimSpace(out))
			switch {
			case strings.Contains(cleaned, "PNL"):
				slog.Debug("Classifier IncomeDocument chose pnl", "occupation", occupation)
				return models.DocumentPNL
			case strings.Contains(cleaned, "PAYSLIPS"):
				slog.Debug("Classifier IncomeDocument chose payslips", "occupation", occupation)
				return models.DocumentPayslips
			}
			slog.Debug("Classifier IncomeDocument got unrecognized answer", "occupation", occupation, "answer", cleaned)
		} else {
			slog.Debug("Classifier IncomeDocument model call failed", "occupation", occupation, "error", err)
		}
	}
	return keywordIncomeDocument(occupation)
}

// keywordIncomeDocument is the deterministic fallback.
func keywordIncomeDocument(occupation string) models.DocumentType {
	lower := strings.ToLower(occupation)
	for _, kw := range selfEmployedKeywords {
		if strings.Contains(lower, kw) {
			return models.DocumentPNL
		}
	}
	return models.DocumentPayslips
}

// Sequence returns the ordered documents for a tenant given the income
// document: identity papers first, then proof of income, then bank history.
func Sequence(income models.DocumentType) []models.DocumentType {
	return []models.DocumentType{
		models.DocumentIDCard,
		models.DocumentSephach,
		income,
		models.DocumentBankStatements,
	}
}

// FieldSequence is Sequence projected onto conversation fields.
func FieldSequence(income models.DocumentType) []models.Field {
	docs := Sequence(income)
	fields := make([]models.Field, len(docs))
	for i, d := range docs {
		fields[i] = d.Field()
	}
	return fields
}

// AcceptingProcessor approves every upload without extraction. Used when no
// document pipeline is configured so the conversation can still advance.
type AcceptingProcessor struct{}

var _ Processor = (*AcceptingProcessor)(nil)

func (AcceptingProcessor) Process(ctx context.Context, tenant *models.Tenant, doc models.DocumentType, fileURL string) (*models.DocumentExtractionResult, error) {
	return &models.DocumentExtractionResult{Type: doc, Valid: true, FileURL: fileURL}, nil
}
