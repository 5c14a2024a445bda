// Package models defines conversation state structures for onboardbot.
package models

import "time"

// ConversationState identifies a step in the onboarding flow. The set is
// closed: transition handlers switch exhaustively over these values.
type ConversationState string

const (
	StateGreeting           ConversationState = "GREETING"
	StateConfirmation       ConversationState = "CONFIRMATION"
	StatePersonalInfo       ConversationState = "PERSONAL_INFO"
	StateDocumentCollection ConversationState = "DOCUMENT_COLLECTION"
	StateGuarantorInfo      ConversationState = "GUARANTOR_INFO"
	StateCompleted          ConversationState = "COMPLETED"
	// StateEscalated is terminal for automation: reached after repeated
	// unresolvable input and handed to a human operator.
	StateEscalated ConversationState = "ESCALATED"
)

// IsValid reports whether s is a known conversation state.
func (s ConversationState) IsValid() bool {
	switch s {
	case StateGreeting, StateConfirmation, StatePersonalInfo,
		StateDocumentCollection, StateGuarantorInfo, StateCompleted, StateEscalated:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further automatic transitions happen from s.
func (s ConversationState) IsTerminal() bool {
	return s == StateCompleted || s == StateEscalated
}

// Field identifies a single collected data field within a state.
type Field string

// Personal info fields.
const (
	FieldOccupation       Field = "occupation"
	FieldFamilyStatus     Field = "family_status"
	FieldNumberOfChildren Field = "number_of_children"
)

// Document collection fields. Each corresponds to one required document.
const (
	FieldIDCard         Field = "id_card"
	FieldSephach        Field = "sephach"
	FieldPayslips       Field = "payslips"
	FieldPNL            Field = "pnl"
	FieldBankStatements Field = "bank_statements"
)

// Guarantor fields. The value is the raw "name, phone" contact line.
const (
	FieldGuarantor1 Field = "guarantor1"
	FieldGuarantor2 Field = "guarantor2"
)

// FieldCollectingStates maps each field-collecting state to its canonical
// FieldOrder. Shared read-only configuration; the document sequence is
// specialized per occupation at runtime (payslips vs pnl).
var FieldCollectingStates = map[ConversationState][]Field{
	StatePersonalInfo:       {FieldOccupation, FieldFamilyStatus, FieldNumberOfChildren},
	StateDocumentCollection: {FieldIDCard, FieldSephach, FieldPayslips, FieldBankStatements},
	StateGuarantorInfo:      {FieldGuarantor1, FieldGuarantor2},
}

// CollectsFields reports whether s expects a CurrentField.
func (s ConversationState) CollectsFields() bool {
	_, ok := FieldCollectingStates[s]
	return ok
}

// ConversationRecord is the persisted state of one user's onboarding
// conversation. It is mutated exactly once per applied inbound message and
// never deleted by the engine.
type ConversationRecord struct {
	UserID         string            `json:"user_id"`
	CurrentState   ConversationState `json:"current_state"`
	CurrentField   Field             `json:"current_field,omitempty"` // non-empty iff CurrentState collects fields
	ContextData    map[Field]string  `json:"context_data,omitempty"`
	AmbiguousCount int               `json:"ambiguous_count"` // consecutive unresolvable replies for CurrentField
	Language       Language          `json:"language"`
	Version        int64             `json:"version"` // optimistic concurrency counter
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewConversationRecord returns a fresh record at GREETING for a new user.
func NewConversationRecord(userID string) *ConversationRecord {
	now := time.Now()
	return &ConversationRecord{
		UserID:       userID,
		CurrentState: StateGreeting,
		ContextData:  make(map[Field]string),
		Language:     LanguageHebrew,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CheckInvariant verifies the CurrentField/state coupling: CurrentField is
// non-empty if and only if CurrentState is a field-collecting state.
func (r *ConversationRecord) CheckInvariant() bool {
	if r.CurrentState.CollectsFields() {
		return r.CurrentField != ""
	}
	return r.CurrentField == ""
}

// Clone returns a deep copy so callers never share ContextData maps.
func (r *ConversationRecord) Clone() *ConversationRecord {
	cp := *r
	cp.ContextData = make(map[Field]string, len(r.ContextData))
	for k, v := range r.ContextData {
		cp.ContextData[k] = v
	}
	return &cp
}
