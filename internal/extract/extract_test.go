package extract

import (
	"testing"

	"github.com/megurit/onboardbot/internal/models"
)

func TestExtractConfirmationTokens(t *testing.T) {
	e := NewExtractor()

	affirmatives := []string{"yes", "Yes", "  yes  ", "yes!", "OK", "כן", "אישור", "מאשר", "נכון"}
	for _, in := range affirmatives {
		res := e.Extract(models.FieldOccupation, in)
		if res.Kind != KindConfirmation || !res.Affirmative {
			t.Errorf("Extract(%q) = %+v, want affirmative confirmation", in, res)
		}
	}

	negatives := []string{"no", "No", "לא", "לא נכון", "wrong"}
	for _, in := range negatives {
		res := e.Extract(models.FieldOccupation, in)
		if res.Kind != KindConfirmation || res.Affirmative {
			t.Errorf("Extract(%q) = %+v, want negative confirmation", in, res)
		}
	}
}

func TestExtractConfirmationNeverBecomesFieldValue(t *testing.T) {
	e := NewExtractor()
	fields := []models.Field{
		models.FieldOccupation,
		models.FieldFamilyStatus,
		models.FieldNumberOfChildren,
		models.FieldGuarantor1,
		models.FieldIDCard,
	}
	for _, f := range fields {
		res := e.Extract(f, "כן")
		if res.Kind != KindConfirmation {
			t.Errorf("Extract(%s, כן) kind = %s, want confirmation", f, res.Kind)
		}
		if res.Value != "" {
			t.Errorf("Extract(%s, כן) carried value %q", f, res.Value)
		}
	}
}

func TestExtractOccupation(t *testing.T) {
	e := NewExtractor()

	res := e.Extract(models.FieldOccupation, "software engineer")
	if res.Kind != KindFieldValue || res.Value != "software engineer" {
		t.Errorf("got %+v, want field value", res)
	}
	res = e.Extract(models.FieldOccupation, "עצמאי")
	if res.Kind != KindFieldValue || res.Value != "עצמאי" {
		t.Errorf("got %+v, want field value", res)
	}

	for _, in := range []string{"", "a", "12345", "check http://spam.example"} {
		if res := e.Extract(models.FieldOccupation, in); res.Kind != KindAmbiguous {
			t.Errorf("Extract(occupation, %q) = %+v, want ambiguous", in, res)
		}
	}
}

func TestExtractFamilyStatus(t *testing.T) {
	e := NewExtractor()

	for _, in := range []string{"married", "נשוי", "נשואה", "Single", "גרושה"} {
		res := e.Extract(models.FieldFamilyStatus, in)
		if res.Kind != KindFieldValue {
			t.Errorf("Extract(family_status, %q) = %+v, want field value", in, res)
		}
	}
	if res := e.Extract(models.FieldFamilyStatus, "it is complicated"); res.Kind != KindAmbiguous {
		t.Errorf("got %+v, want ambiguous", res)
	}
}

func TestExtractNumberOfChildren(t *testing.T) {
	e := NewExtractor()

	cases := map[string]string{
		"0":      "0",
		"3":      "3",
		"three":  "3",
		"שלושה":  "3",
		"אין":    "0",
		" 2 ":    "2",
	}
	for in, want := range cases {
		res := e.Extract(models.FieldNumberOfChildren, in)
		if res.Kind != KindFieldValue || res.Value != want {
			t.Errorf("Extract(children, %q) = %+v, want value %q", in, res, want)
		}
	}

	for _, in := range []string{"-1", "99", "many", "1.5"} {
		if res := e.Extract(models.FieldNumberOfChildren, in); res.Kind != KindAmbiguous {
			t.Errorf("Extract(children, %q) = %+v, want ambiguous", in, res)
		}
	}
}

func TestExtractGuarantorContact(t *testing.T) {
	e := NewExtractor()

	res := e.Extract(models.FieldGuarantor1, "דוד כהן, 052-1234567")
	if res.Kind != KindFieldValue {
		t.Errorf("got %+v, want field value", res)
	}

	for _, in := range []string{"David Cohen", "0521234567", "my brother"} {
		if res := e.Extract(models.FieldGuarantor1, in); res.Kind != KindAmbiguous {
			t.Errorf("Extract(guarantor1, %q) = %+v, want ambiguous", in, res)
		}
	}
}

func TestExtractDocumentFieldsTextIsAmbiguous(t *testing.T) {
	e := NewExtractor()
	if res := e.Extract(models.FieldIDCard, "here is my id"); res.Kind != KindAmbiguous {
		t.Errorf("got %+v, want ambiguous", res)
	}
}

func TestIsConfirmationToken(t *testing.T) {
	e := NewExtractor()
	if !e.IsConfirmationToken("Yes.") {
		t.Error("Yes. should be a confirmation token")
	}
	if e.IsConfirmationToken("teacher") {
		t.Error("teacher should not be a confirmation token")
	}
}
