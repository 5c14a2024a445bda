package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/megurit/onboardbot/internal/models"
)

func testTenant() *models.Tenant {
	return &models.Tenant{
		FullName:        "דוד כהן",
		PropertyName:    "מגדלי הים",
		ApartmentNumber: "12",
		NumberOfRooms:   3,
		MonthlyRent:     5500,
		MoveInDate:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGreetingLanguages(t *testing.T) {
	c := NewComposer()
	ten := testTenant()

	he := c.Greeting(ten, models.LanguageHebrew)
	if !strings.Contains(he.Body, "דוד כהן") || !strings.Contains(he.Body, "מגדלי הים") {
		t.Errorf("hebrew greeting missing tenant details: %q", he.Body)
	}
	en := c.Greeting(ten, models.LanguageEnglish)
	if !strings.Contains(en.Body, "Hello דוד כהן") {
		t.Errorf("english greeting wrong: %q", en.Body)
	}
	if en.Lang != models.LanguageEnglish {
		t.Errorf("lang = %s", en.Lang)
	}
}

func TestConfirmDetailsIncludesLease(t *testing.T) {
	c := NewComposer()
	out := c.ConfirmDetails(testTenant(), models.LanguageEnglish)
	for _, want := range []string{"12", "3", "01/10/2026", "5500"} {
		if !strings.Contains(out.Body, want) {
			t.Errorf("confirmation missing %q: %q", want, out.Body)
		}
	}
}

func TestPromptIsPureAndCoversFields(t *testing.T) {
	c := NewComposer()

	cases := []struct {
		state models.ConversationState
		field models.Field
	}{
		{models.StatePersonalInfo, models.FieldOccupation},
		{models.StatePersonalInfo, models.FieldFamilyStatus},
		{models.StatePersonalInfo, models.FieldNumberOfChildren},
		{models.StateDocumentCollection, models.FieldIDCard},
		{models.StateDocumentCollection, models.FieldSephach},
		{models.StateDocumentCollection, models.FieldPayslips},
		{models.StateDocumentCollection, models.FieldPNL},
		{models.StateDocumentCollection, models.FieldBankStatements},
		{models.StateGuarantorInfo, models.FieldGuarantor1},
		{models.StateGuarantorInfo, models.FieldGuarantor2},
		{models.StateCompleted, ""},
		{models.StateEscalated, ""},
	}
	for _, tc := range cases {
		for _, lang := range []models.Language{models.LanguageHebrew, models.LanguageEnglish} {
			out := c.Prompt(tc.state, tc.field, lang)
			if out.Body == "" {
				t.Errorf("empty prompt for %s/%s/%s", tc.state, tc.field, lang)
			}
			again := c.Prompt(tc.state, tc.field, lang)
			if out != again {
				t.Errorf("prompt not deterministic for %s/%s", tc.state, tc.field)
			}
		}
	}
}

func TestGuarantorPromptNumbering(t *testing.T) {
	c := NewComposer()
	one := c.Prompt(models.StateGuarantorInfo, models.FieldGuarantor1, models.LanguageEnglish)
	two := c.Prompt(models.StateGuarantorInfo, models.FieldGuarantor2, models.LanguageEnglish)
	if !strings.Contains(one.Body, "guarantor 1") {
		t.Errorf("got %q", one.Body)
	}
	if !strings.Contains(two.Body, "guarantor 2") {
		t.Errorf("got %q", two.Body)
	}
}

func TestGuarantorOutreachNamesBothParties(t *testing.T) {
	c := NewComposer()
	g := &models.Guarantor{FullName: "David Levi", PhoneNumber: "0521111111"}

	en := c.GuarantorOutreach(g, testTenant(), models.LanguageEnglish)
	for _, want := range []string{"David Levi", "דוד כהן", "מגדלי הים", "guarantor"} {
		if !strings.Contains(en.Body, want) {
			t.Errorf("english outreach missing %q: %q", want, en.Body)
		}
	}
	he := c.GuarantorOutreach(g, testTenant(), models.LanguageHebrew)
	if !strings.Contains(he.Body, "ערב") || !strings.Contains(he.Body, "David Levi") {
		t.Errorf("hebrew outreach wrong: %q", he.Body)
	}
}

func TestClarifyRepeatsQuestion(t *testing.T) {
	c := NewComposer()
	out := c.Clarify(models.StatePersonalInfo, models.FieldOccupation, models.LanguageEnglish)
	if !strings.Contains(out.Body, "What is your occupation?") {
		t.Errorf("clarify does not repeat the question: %q", out.Body)
	}
}

func TestDocumentRejectedIncludesReasons(t *testing.T) {
	c := NewComposer()
	out := c.DocumentRejected(models.DocumentIDCard, []string{"The photo is blurry."}, models.LanguageEnglish)
	if !strings.Contains(out.Body, "blurry") || !strings.Contains(out.Body, "ID card") {
		t.Errorf("got %q", out.Body)
	}
}
