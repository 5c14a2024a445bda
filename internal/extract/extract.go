// Package extract provides deterministic, rule-based extraction of field
// values and confirmation words from raw user input.
//
// The extractor runs before the LLM interpreter and short-circuits it when a
// clear confirmation token is recognized. A recognized confirmation token is
// never routed to the field-writing path as a data value, in any state.
package extract

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/megurit/onboardbot/internal/models"
)

// Kind classifies an extraction result.
type Kind string

const (
	// KindConfirmation means the input is a recognized yes/no token.
	KindConfirmation Kind = "confirmation"
	// KindFieldValue means the input is a direct answer for the current field.
	KindFieldValue Kind = "field_value"
	// KindAmbiguous means the input could not be routed deterministically.
	KindAmbiguous Kind = "ambiguous"
)

// Result is the outcome of extracting one inbound message.
type Result struct {
	Kind        Kind
	Affirmative bool   // meaningful only when Kind is KindConfirmation
	Value       string // meaningful only when Kind is KindFieldValue
}

// Default confirmation tokens for the supported languages (Hebrew, English).
var (
	defaultAffirmatives = []string{
		"yes", "y", "yeah", "yep", "ok", "okay", "confirm", "correct", "sure",
		"כן", "אישור", "מאשר", "מאשרת", "נכון", "בסדר", "מעולה",
	}
	defaultNegatives = []string{
		"no", "n", "nope", "wrong", "incorrect",
		"לא", "לא נכון", "שגוי", "שלילי",
	}
)

// Known family status answers accepted verbatim.
var familyStatuses = []string{
	"single", "married", "divorced", "widowed",
	"רווק", "רווקה", "נשוי", "נשואה", "גרוש", "גרושה", "אלמן", "אלמנה",
}

// spamIndicators mark input that is never a meaningful field value.
var spamIndicators = []string{"http://", "https://", "www."}

// Extractor recognizes confirmation words and field answers using fixed
// keyword and pattern rules. It is deterministic and safe for concurrent use.
type Extractor struct {
	affirmatives map[string]struct{}
	negatives    map[string]struct{}
}

// NewExtractor creates an extractor with the default Hebrew/English tokens.
func NewExtractor() *Extractor {
	e := &Extractor{
		affirmatives: make(map[string]struct{}, len(defaultAffirmatives)),
		negatives:    make(map[string]struct{}, len(defaultNegatives)),
	}
	for _, t := range defaultAffirmatives {
		e.affirmatives[t] = struct{}{}
	}
	for _, t := range defaultNegatives {
		e.negatives[t] = struct{}{}
	}
	return e
}

// IsConfirmationToken reports whether raw is a recognized yes/no token.
// Exposed so other components can guarantee confirmation-word isolation.
func (e *Extractor) IsConfirmationToken(raw string) bool {
	norm := normalize(raw)
	if _, ok := e.affirmatives[norm]; ok {
		return true
	}
	_, ok := e.negatives[norm]
	return ok
}

// Extract decides whether raw input is a confirmation word, a direct answer
// for field, or ambiguous. Confirmation recognition runs first and applies
// in every state, so a "yes" can never be committed as a field value.
func (e *Extractor) Extract(field models.Field, raw string) Result {
	norm := normalize(raw)
	if norm == "" {
		return Result{Kind: KindAmbiguous}
	}

	if _, ok := e.affirmatives[norm]; ok {
		slog.Debug("Extractor recognized affirmative token", "field", field)
		return Result{Kind: KindConfirmation, Affirmative: true}
	}
	if _, ok := e.negatives[norm]; ok {
		slog.Debug("Extractor recognized negative token", "field", field)
		return Result{Kind: KindConfirmation, Affirmative: false}
	}

	for _, indicator := range spamIndicators {
		if strings.Contains(norm, indicator) {
			slog.Debug("Extractor rejected spam-like input", "field", field)
			return Result{Kind: KindAmbiguous}
		}
	}

	switch field {
	case models.FieldOccupation:
		return extractFreeText(raw)
	case models.FieldFamilyStatus:
		return extractFamilyStatus(norm)
	case models.FieldNumberOfChildren:
		return extractChildCount(norm)
	case models.FieldGuarantor1, models.FieldGuarantor2:
		return extractContactLine(raw)
	case models.FieldIDCard, models.FieldSephach, models.FieldPayslips,
		models.FieldPNL, models.FieldBankStatements:
		// Documents arrive through the upload path; text here is unroutable.
		return Result{Kind: KindAmbiguous}
	default:
		return Result{Kind: KindAmbiguous}
	}
}

// normalize lowercases, trims whitespace, and strips trailing punctuation.
func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r)
	})
}

// extractFreeText accepts any meaningful short text answer.
func extractFreeText(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if len([]rune(trimmed)) < 2 || len(trimmed) > 200 {
		return Result{Kind: KindAmbiguous}
	}
	if !hasLetter(trimmed) {
		return Result{Kind: KindAmbiguous}
	}
	return Result{Kind: KindFieldValue, Value: trimmed}
}

// extractFamilyStatus matches the known status words in either language.
func extractFamilyStatus(norm string) Result {
	for _, status := range familyStatuses {
		if norm == status {
			return Result{Kind: KindFieldValue, Value: norm}
		}
	}
	return Result{Kind: KindAmbiguous}
}

// Number words accepted for the children count question.
var numberWords = map[string]int{
	"zero": 0, "none": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"אין": 0, "אחד": 1, "אחת": 1, "שניים": 2, "שתיים": 2, "שלושה": 3, "שלוש": 3,
	"ארבעה": 4, "ארבע": 4, "חמישה": 5, "חמש": 5,
}

// extractChildCount parses a small non-negative integer.
func extractChildCount(norm string) Result {
	if n, ok := numberWords[norm]; ok {
		return Result{Kind: KindFieldValue, Value: strconv.Itoa(n)}
	}
	n, err := strconv.Atoi(norm)
	if err != nil || n < 0 || n > 20 {
		return Result{Kind: KindAmbiguous}
	}
	return Result{Kind: KindFieldValue, Value: strconv.Itoa(n)}
}

// extractContactLine accepts a "name, phone" style guarantor answer: it must
// carry both letters (a name) and a plausible phone digit run.
func extractContactLine(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if !hasLetter(trimmed) {
		return Result{Kind: KindAmbiguous}
	}
	digits := 0
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < 6 {
		return Result{Kind: KindAmbiguous}
	}
	return Result{Kind: KindFieldValue, Value: trimmed}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
