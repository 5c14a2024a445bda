package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/megurit/onboardbot/internal/document"
	"github.com/megurit/onboardbot/internal/extract"
	"github.com/megurit/onboardbot/internal/models"
	"github.com/megurit/onboardbot/internal/util"
)

// transition dispatches to the handler for the record's current state and
// mutates rec in place. The state set is closed; the switch is exhaustive.
func (e *Engine) transition(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant, msg *models.InboundMessage) (outcome, error) {
	switch rec.CurrentState {
	case models.StateGreeting:
		return e.handleGreeting(rec, tenant, msg), nil
	case models.StateConfirmation:
		return e.handleConfirmation(ctx, rec, msg), nil
	case models.StatePersonalInfo:
		return e.handlePersonalInfo(ctx, rec, tenant, msg), nil
	case models.StateDocumentCollection:
		return e.handleDocuments(ctx, rec, tenant, msg), nil
	case models.StateGuarantorInfo:
		return e.handleGuarantors(ctx, rec, tenant, msg), nil
	case models.StateCompleted:
		// Terminal for the flow; replies just restate completion.
		return outcome{}, nil
	case models.StateEscalated:
		// Handed off to a human. No automatic replies.
		return outcome{silent: true}, nil
	default:
		return outcome{}, fmt.Errorf("unknown conversation state %q for %s", rec.CurrentState, rec.UserID)
	}
}

// handleGreeting opens the conversation. Any first message moves the user to
// detail confirmation; the reply carries the greeting ahead of the prompt.
func (e *Engine) handleGreeting(rec *models.ConversationRecord, tenant *models.Tenant, msg *models.InboundMessage) outcome {
	rec.Language = detectLanguage(msg.Body)
	rec.CurrentState = models.StateConfirmation
	rec.AmbiguousCount = 0
	greeting := e.composer.Greeting(tenant, rec.Language)
	return outcome{ack: greeting.Body}
}

// handleConfirmation resolves the yes/no answer to the lease details. A
// denial means the stored details are wrong, which only a human can fix.
func (e *Engine) handleConfirmation(ctx context.Context, rec *models.ConversationRecord, msg *models.InboundMessage) outcome {
	res := e.extractor.Extract("", msg.Body)
	switch res.Kind {
	case extract.KindConfirmation:
		if res.Affirmative {
			e.enterPersonalInfo(rec)
			return outcome{}
		}
		e.escalate(rec, "details denied")
		return outcome{}
	case extract.KindAmbiguous, extract.KindFieldValue:
		interp, err := e.interpreter.Interpret(ctx, rec.CurrentState, "", msg.Body)
		if err != nil {
			slog.Debug("Engine handleConfirmation interpreter degraded", "userID", rec.UserID, "error", err)
		}
		switch interp.Intent {
		case models.IntentConfirm:
			e.enterPersonalInfo(rec)
			return outcome{}
		case models.IntentDeny:
			e.escalate(rec, "details denied")
			return outcome{}
		default:
			return e.handleAmbiguous(rec)
		}
	}
	return e.handleAmbiguous(rec)
}

// handlePersonalInfo collects occupation, family status, and children count
// in order.
func (e *Engine) handlePersonalInfo(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant, msg *models.InboundMessage) outcome {
	res := e.extractor.Extract(rec.CurrentField, msg.Body)
	switch res.Kind {
	case extract.KindFieldValue:
		e.commitField(rec, rec.CurrentField, res.Value)
		e.advancePersonalInfo(ctx, rec, tenant)
		return outcome{}
	case extract.KindConfirmation:
		// A bare yes/no does not answer an open question and is never
		// written as a field value.
		return e.handleAmbiguous(rec)
	default:
		if value, ok := e.resolveWithInterpreter(ctx, rec, msg.Body); ok {
			e.commitField(rec, rec.CurrentField, value)
			e.advancePersonalInfo(ctx, rec, tenant)
			return outcome{}
		}
		return e.handleAmbiguous(rec)
	}
}

// handleDocuments walks the tenant's document sequence. Uploads go through
// the processor; plain text cannot satisfy a document request.
func (e *Engine) handleDocuments(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant, msg *models.InboundMessage) outcome {
	if msg.MediaURL == "" {
		// Text cannot satisfy a document request.
		return e.handleAmbiguous(rec)
	}

	docType := models.DocumentType(rec.CurrentField)
	result, err := e.processor.Process(ctx, tenant, docType, msg.MediaURL)
	if err != nil {
		slog.Debug("Engine handleDocuments processing failed", "userID", rec.UserID, "document", docType, "error", err)
		rejected := e.composer.DocumentRejected(docType, nil, rec.Language)
		return outcome{ack: rejected.Body}
	}
	if !result.Valid {
		slog.Debug("Engine handleDocuments rejected document", "userID", rec.UserID, "document", docType, "errors", result.Errors)
		rejected := e.composer.DocumentRejected(docType, result.Errors, rec.Language)
		return outcome{ack: rejected.Body}
	}

	value := result.FileURL
	if value == "" {
		value = string(models.DocumentStatusValidated)
	}
	e.commitField(rec, rec.CurrentField, value)
	approved := e.composer.DocumentApproved(docType, rec.Language)
	e.advanceDocuments(rec)
	return outcome{ack: approved.Body}
}

// handleGuarantors collects the two guarantor contact lines.
func (e *Engine) handleGuarantors(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant, msg *models.InboundMessage) outcome {
	res := e.extractor.Extract(rec.CurrentField, msg.Body)
	value := res.Value
	if res.Kind != extract.KindFieldValue {
		if res.Kind == extract.KindConfirmation {
			return e.handleAmbiguous(rec)
		}
		v, ok := e.resolveWithInterpreter(ctx, rec, msg.Body)
		if !ok {
			return e.handleAmbiguous(rec)
		}
		value = v
	}

	number := 1
	if rec.CurrentField == models.FieldGuarantor2 {
		number = 2
	}
	name, phone := splitContactLine(value)
	g := &models.Guarantor{
		ID:          util.GenerateGuarantorID(),
		TenantID:    tenant.ID,
		Number:      number,
		FullName:    name,
		PhoneNumber: phone,
	}
	if err := e.saveGuarantor(ctx, g); err != nil {
		slog.Debug("Engine handleGuarantors save failed", "userID", rec.UserID, "number", number, "error", err)
	} else {
		e.notifyGuarantor(ctx, g, tenant, rec.Language)
	}

	e.commitField(rec, rec.CurrentField, value)
	ack := e.composer.GuarantorReceived(number, rec.Language)
	if rec.CurrentField == models.FieldGuarantor1 {
		rec.CurrentField = models.FieldGuarantor2
		rec.AmbiguousCount = 0
	} else {
		rec.CurrentState = models.StateCompleted
		rec.CurrentField = ""
		rec.AmbiguousCount = 0
	}
	return outcome{ack: ack.Body}
}

// handleAmbiguous counts an unresolvable reply and either re-asks or, past
// the bound, hands the conversation to a human.
func (e *Engine) handleAmbiguous(rec *models.ConversationRecord) outcome {
	rec.AmbiguousCount++
	if rec.AmbiguousCount > e.ambiguousBound {
		e.escalate(rec, "repeated unresolvable replies")
		return outcome{}
	}
	return outcome{clarify: true}
}

func (e *Engine) escalate(rec *models.ConversationRecord, reason string) {
	slog.Debug("Engine escalating conversation", "userID", rec.UserID, "state", rec.CurrentState, "reason", reason)
	rec.CurrentState = models.StateEscalated
	rec.CurrentField = ""
}

// enterPersonalInfo starts the personal field sequence.
func (e *Engine) enterPersonalInfo(rec *models.ConversationRecord) {
	rec.CurrentState = models.StatePersonalInfo
	rec.CurrentField = models.FieldCollectingStates[models.StatePersonalInfo][0]
	rec.AmbiguousCount = 0
}

// commitField writes a value once. A committed field is never overwritten,
// so replaying a handler against current state cannot clobber prior answers.
func (e *Engine) commitField(rec *models.ConversationRecord, field models.Field, value string) {
	if rec.ContextData == nil {
		rec.ContextData = make(map[models.Field]string)
	}
	if _, exists := rec.ContextData[field]; exists {
		slog.Debug("Engine commitField skipped already-committed field", "userID", rec.UserID, "field", field)
		return
	}
	rec.ContextData[field] = value
}

// advancePersonalInfo moves to the next personal field or, when the sequence
// is done, classifies the income document and starts document collection.
func (e *Engine) advancePersonalInfo(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant) {
	order := models.FieldCollectingStates[models.StatePersonalInfo]
	for i, f := range order {
		if f != rec.CurrentField {
			continue
		}
		rec.AmbiguousCount = 0
		if i+1 < len(order) {
			rec.CurrentField = order[i+1]
			return
		}
		e.syncTenantPersonalInfo(ctx, rec, tenant)
		income := e.classifier.IncomeDocument(ctx, rec.ContextData[models.FieldOccupation])
		rec.ContextData[fieldIncomeDocument] = string(income)
		rec.CurrentState = models.StateDocumentCollection
		rec.CurrentField = models.FieldIDCard
		return
	}
}

// advanceDocuments moves to the next required document or starts guarantor
// collection when the sequence is exhausted.
func (e *Engine) advanceDocuments(rec *models.ConversationRecord) {
	order := document.FieldSequence(e.incomeDocument(rec))
	for i, f := range order {
		if f != rec.CurrentField {
			continue
		}
		rec.AmbiguousCount = 0
		if i+1 < len(order) {
			rec.CurrentField = order[i+1]
			return
		}
		rec.CurrentState = models.StateGuarantorInfo
		rec.CurrentField = models.FieldGuarantor1
		return
	}
}

// incomeDocument reads the classified income document, defaulting to
// payslips for records that predate the classification.
func (e *Engine) incomeDocument(rec *models.ConversationRecord) models.DocumentType {
	if v, ok := rec.ContextData[fieldIncomeDocument]; ok {
		doc := models.DocumentType(v)
		if doc == models.DocumentPNL || doc == models.DocumentPayslips {
			return doc
		}
	}
	return models.DocumentPayslips
}

// resolveWithInterpreter consults the advisory interpreter for an ambiguous
// reply. Its value is accepted only when it re-passes the deterministic
// extractor rules, so the interpreter can fill gaps but never override them.
func (e *Engine) resolveWithInterpreter(ctx context.Context, rec *models.ConversationRecord, raw string) (string, bool) {
	interp, err := e.interpreter.Interpret(ctx, rec.CurrentState, rec.CurrentField, raw)
	if err != nil {
		slog.Debug("Engine resolveWithInterpreter degraded to unknown", "userID", rec.UserID, "error", err)
		return "", false
	}
	if interp.Intent != models.IntentData || interp.Confidence < minDataConfidence || interp.Value == "" {
		return "", false
	}
	if e.extractor.IsConfirmationToken(interp.Value) {
		return "", false
	}
	res := e.extractor.Extract(rec.CurrentField, interp.Value)
	if res.Kind != extract.KindFieldValue {
		return "", false
	}
	return res.Value, true
}

// syncTenantPersonalInfo copies collected answers onto the tenant record.
// Best effort: a failed write never blocks the conversation.
func (e *Engine) syncTenantPersonalInfo(ctx context.Context, rec *models.ConversationRecord, tenant *models.Tenant) {
	tenant.Occupation = rec.ContextData[models.FieldOccupation]
	tenant.FamilyStatus = rec.ContextData[models.FieldFamilyStatus]
	if n, err := parseInt(rec.ContextData[models.FieldNumberOfChildren]); err == nil {
		tenant.Children = n
	}
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	if err := e.store.UpdateTenant(ctx, tenant); err != nil {
		slog.Debug("Engine syncTenantPersonalInfo failed", "userID", rec.UserID, "error", err)
	}
}

// notifyGuarantor messages a captured guarantor on their own number so they
// know they were named and what comes next. Best effort: delivery failure
// never blocks the tenant's conversation.
func (e *Engine) notifyGuarantor(ctx context.Context, g *models.Guarantor, tenant *models.Tenant, lang models.Language) {
	if e.notifier == nil || g.PhoneNumber == "" {
		return
	}
	out := e.composer.GuarantorOutreach(g, tenant, lang)
	if err := e.notifier.Notify(ctx, g.PhoneNumber, out.Body); err != nil {
		slog.Debug("Engine notifyGuarantor failed", "guarantor", g.PhoneNumber, "number", g.Number, "error", err)
		return
	}
	slog.Debug("Engine notifyGuarantor succeeded", "guarantor", g.PhoneNumber, "number", g.Number)
}

func (e *Engine) saveGuarantor(ctx context.Context, g *models.Guarantor) error {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.SaveGuarantor(ctx, g)
}

// splitContactLine separates a "name, phone" answer into its parts. The
// phone is the longest digit-bearing token; everything else is the name.
func splitContactLine(value string) (name, phone string) {
	var nameParts []string
	for _, token := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	}) {
		digits := 0
		for _, r := range token {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits >= 6 {
			phone = token
			continue
		}
		nameParts = append(nameParts, token)
	}
	name = strings.Join(nameParts, " ")
	if name == "" {
		name = strings.TrimSpace(value)
	}
	return name, phone
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n, err
}

// detectLanguage picks the reply language from the first message. Hebrew is
// the default; Latin-only text switches to English.
func detectLanguage(body string) models.Language {
	hasLatin := false
	for _, r := range body {
		if unicode.Is(unicode.Hebrew, r) {
			return models.LanguageHebrew
		}
		if unicode.IsLetter(r) {
			hasLatin = true
		}
	}
	if hasLatin {
		return models.LanguageEnglish
	}
	return models.LanguageHebrew
}
