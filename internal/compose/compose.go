// Package compose renders the outbound prompt for a conversation step.
//
// Composition is a pure lookup over the post-transition record: given the
// state and pending field it returns a fixed template in the user's language.
// No network calls, no store access, no generated text.
package compose

import (
	"fmt"
	"strings"

	"github.com/megurit/onboardbot/internal/models"
)

// Composer renders outbound messages. The zero value is usable.
type Composer struct{}

// NewComposer returns a composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Hebrew templates.
const (
	greetingHE = "שלום %s, זה יוני ממגורית. אנחנו שמחים שהחלטת להצטרף למשפחת מגורית ב%s."

	confirmDetailsHE = `אנא אשר את הפרטים הבאים:
• מספר דירה: %s
• מספר חדרים: %d
• תאריך כניסה: %s
• שכר דירה חודשי: ₪%.0f

הפרטים נכונים? השיב 'כן' או 'אישור' אם הכל תקין, או ספר לי מה צריך לשנות.`

	occupationHE   = "מה העיסוק שלך?"
	familyStatusHE = "מה המצב המשפחתי שלך? (רווק/נשוי/גרוש/אלמן)"
	childrenHE     = "כמה ילדים יש לך?"

	docIDCardHE   = "אנא שלח את תמונת תעודת הזהות שלך (Teudat Zehut)."
	docSephachHE  = "אנא שלח את הטופס ספח (Sephach)."
	docPayslipsHE = "אנא שלח את 3 תלושי השכר האחרונים שלך (כקובץ PDF או תמונות)."
	docPNLHE      = "אנא שלח את דוח רווח והפסד העדכני שלך (כקובץ PDF)."
	docBankHE     = "אנא שלח את דוחות הבנק של 3 החודשים האחרונים."

	guarantorRequestHE  = "אנא שלח את השם ומספר הטלפון של הערב %d."
	guarantorReceivedHE = "תודה! פרטי הערב %d התקבלו."
	guarantorOutreachHE = "שלום %s, זה יוני ממגורית. %s ציין אותך כערב לחוזה השכירות שלו ב%s. נחזור אליך בקרוב עם המסמכים הדרושים לחתימה."

	completionHE = "מעולה! כל המידע התקבל. התהליך הושלם בהצלחה! תודה שהצטרפת למשפחת מגורית."
	escalatedHE  = "מעביר אותך לנציג אנושי שיחזור אליך בהקדם. תודה על הסבלנות."

	errorHE       = "מצטער, אירעה שגיאה. אנא נסה שוב או פנה לצוות התמיכה."
	docRejectedHE = "המסמך לא אושר. %s אנא שלח שוב את %s."
	docApprovedHE = "מעולה! %s התקבל ואושר."

	clarifyHE = "לא הצלחתי להבין את התשובה. %s"
)

// English templates.
const (
	greetingEN = "Hello %s, this is Yoni from Megurit. We're happy you decided to join the Megurit family at %s."

	confirmDetailsEN = `Please confirm these details:
• Apartment number: %s
• Number of rooms: %d
• Move-in date: %s
• Monthly rent: ₪%.0f

Are these details correct? Reply 'YES' or 'CONFIRM' if everything is correct, or tell me what needs to be changed.`

	occupationEN   = "What is your occupation?"
	familyStatusEN = "What is your family status? (Single/Married/Divorced/Widowed)"
	childrenEN     = "How many children do you have?"

	docIDCardEN   = "Please send your ID card photo (Teudat Zehut)."
	docSephachEN  = "Please send your Sephach form."
	docPayslipsEN = "Please send your 3 recent pay slips (as PDF or images)."
	docPNLEN      = "Please send your most recent profit and loss statement (as PDF)."
	docBankEN     = "Please send your bank statements for the last 3 months."

	guarantorRequestEN  = "Please send the name and phone number of guarantor %d."
	guarantorReceivedEN = "Thank you! Guarantor %d details received."
	guarantorOutreachEN = "Hello %s, this is Yoni from Megurit. %s listed you as a guarantor for their lease at %s. We will contact you shortly with the documents that need your signature."

	completionEN = "Excellent! All information has been received. The process has been completed successfully! Thank you for joining the Megurit family."
	escalatedEN  = "I'm handing you over to a human representative who will contact you shortly. Thank you for your patience."

	errorEN       = "Sorry, an error occurred. Please try again or contact support."
	docRejectedEN = "The document was not approved. %s Please send %s again."
	docApprovedEN = "Great! %s has been received and approved."

	clarifyEN = "I could not understand that answer. %s"
)

// Greeting renders the opening message for a tenant.
func (c *Composer) Greeting(t *models.Tenant, lang models.Language) models.OutboundMessage {
	tpl := greetingHE
	if lang == models.LanguageEnglish {
		tpl = greetingEN
	}
	return models.OutboundMessage{Body: fmt.Sprintf(tpl, t.FullName, t.PropertyName), Lang: lang}
}

// ConfirmDetails renders the lease detail confirmation question.
func (c *Composer) ConfirmDetails(t *models.Tenant, lang models.Language) models.OutboundMessage {
	tpl := confirmDetailsHE
	if lang == models.LanguageEnglish {
		tpl = confirmDetailsEN
	}
	moveIn := t.MoveInDate.Format("02/01/2006")
	return models.OutboundMessage{
		Body: fmt.Sprintf(tpl, t.ApartmentNumber, t.NumberOfRooms, moveIn, t.MonthlyRent),
		Lang: lang,
	}
}

// Prompt renders the question for the pending field of the given state. For
// terminal states it renders the closing message. Unknown combinations fall
// back to the generic error text so the user is never left without a reply.
func (c *Composer) Prompt(state models.ConversationState, field models.Field, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish

	switch state {
	case models.StatePersonalInfo:
		return msg(personalPrompt(field, en), lang)
	case models.StateDocumentCollection:
		return msg(documentPrompt(field, en), lang)
	case models.StateGuarantorInfo:
		n := 1
		if field == models.FieldGuarantor2 {
			n = 2
		}
		return msg(fmt.Sprintf(pick(guarantorRequestHE, guarantorRequestEN, en), n), lang)
	case models.StateCompleted:
		return msg(pick(completionHE, completionEN, en), lang)
	case models.StateEscalated:
		return msg(pick(escalatedHE, escalatedEN, en), lang)
	default:
		return msg(pick(errorHE, errorEN, en), lang)
	}
}

// Clarify re-asks the pending question after an unresolvable reply.
func (c *Composer) Clarify(state models.ConversationState, field models.Field, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish
	question := c.Prompt(state, field, lang).Body
	return msg(fmt.Sprintf(pick(clarifyHE, clarifyEN, en), question), lang)
}

// GuarantorReceived acknowledges a stored guarantor contact.
func (c *Composer) GuarantorReceived(number int, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish
	return msg(fmt.Sprintf(pick(guarantorReceivedHE, guarantorReceivedEN, en), number), lang)
}

// GuarantorOutreach renders the introduction sent to a newly captured
// guarantor on their own number.
func (c *Composer) GuarantorOutreach(g *models.Guarantor, t *models.Tenant, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish
	return msg(fmt.Sprintf(pick(guarantorOutreachHE, guarantorOutreachEN, en), g.FullName, t.FullName, t.PropertyName), lang)
}

// DocumentApproved acknowledges an accepted document.
func (c *Composer) DocumentApproved(doc models.DocumentType, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish
	return msg(fmt.Sprintf(pick(docApprovedHE, docApprovedEN, en), documentLabel(doc, en)), lang)
}

// DocumentRejected asks the user to resend a rejected document.
func (c *Composer) DocumentRejected(doc models.DocumentType, reasons []string, lang models.Language) models.OutboundMessage {
	en := lang == models.LanguageEnglish
	return msg(fmt.Sprintf(pick(docRejectedHE, docRejectedEN, en), strings.Join(reasons, " "), documentLabel(doc, en)), lang)
}

// Error renders the generic failure message.
func (c *Composer) Error(lang models.Language) models.OutboundMessage {
	return msg(pick(errorHE, errorEN, lang == models.LanguageEnglish), lang)
}

func personalPrompt(field models.Field, en bool) string {
	switch field {
	case models.FieldOccupation:
		return pick(occupationHE, occupationEN, en)
	case models.FieldFamilyStatus:
		return pick(familyStatusHE, familyStatusEN, en)
	case models.FieldNumberOfChildren:
		return pick(childrenHE, childrenEN, en)
	default:
		return pick(errorHE, errorEN, en)
	}
}

func documentPrompt(field models.Field, en bool) string {
	switch field {
	case models.FieldIDCard:
		return pick(docIDCardHE, docIDCardEN, en)
	case models.FieldSephach:
		return pick(docSephachHE, docSephachEN, en)
	case models.FieldPayslips:
		return pick(docPayslipsHE, docPayslipsEN, en)
	case models.FieldPNL:
		return pick(docPNLHE, docPNLEN, en)
	case models.FieldBankStatements:
		return pick(docBankHE, docBankEN, en)
	default:
		return pick(errorHE, errorEN, en)
	}
}

func documentLabel(doc models.DocumentType, en bool) string {
	if en {
		switch doc {
		case models.DocumentIDCard:
			return "the ID card"
		case models.DocumentSephach:
			return "the Sephach form"
		case models.DocumentPayslips:
			return "the pay slips"
		case models.DocumentPNL:
			return "the profit and loss statement"
		case models.DocumentBankStatements:
			return "the bank statements"
		}
		return string(doc)
	}
	switch doc {
	case models.DocumentIDCard:
		return "תעודת הזהות"
	case models.DocumentSephach:
		return "הספח"
	case models.DocumentPayslips:
		return "תלושי השכר"
	case models.DocumentPNL:
		return "דוח רווח והפסד"
	case models.DocumentBankStatements:
		return "דוחות הבנק"
	}
	return string(doc)
}

func pick(he, en string, english bool) string {
	if english {
		return en
	}
	return he
}

func msg(body string, lang models.Language) models.OutboundMessage {
	return models.OutboundMessage{Body: body, Lang: lang}
}
