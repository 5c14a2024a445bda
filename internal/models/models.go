// Package models defines the core data structures for onboardbot.
//
// It includes the conversation record, inbound/outbound message types, and
// the shared error values used across modules.
package models

import (
	"errors"
	"time"
)

// Language identifies the localization used for outbound prompts.
type Language string

const (
	// LanguageHebrew is the default conversation language.
	LanguageHebrew Language = "he"
	// LanguageEnglish is the fallback conversation language.
	LanguageEnglish Language = "en"
)

// Validation constants for inbound message handling.
const (
	// MaxMessageBodyLength defines the maximum accepted inbound text length.
	MaxMessageBodyLength = 4096
	// MinMessageBodyLength defines the minimum meaningful inbound text length.
	MinMessageBodyLength = 1
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrEmptyMessageID    = errors.New("transport message ID cannot be empty")
	ErrMessageTooLong    = errors.New("message body exceeds maximum length")
	ErrConflict          = errors.New("conversation record version conflict")
	ErrNotFound          = errors.New("record not found")
	ErrEscalated         = errors.New("conversation escalated to human handoff")
	ErrInterpreterFailed = errors.New("interpreter unavailable")
	ErrDocumentRejected  = errors.New("document processing rejected")
)

// InboundMessage is a single message delivered by the transport.
type InboundMessage struct {
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	MessageID string    `json:"message_id"` // transport message ID, idempotency key
	MediaURL  string    `json:"media_url,omitempty"` // location of an uploaded document
	MediaType string    `json:"media_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate performs basic validation on an inbound message.
func (m *InboundMessage) Validate() error {
	if m.UserID == "" {
		return ErrEmptyUserID
	}
	if m.MessageID == "" {
		return ErrEmptyMessageID
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrMessageTooLong
	}
	return nil
}

// OutboundMessage is the single prompt produced for an applied inbound message.
type OutboundMessage struct {
	Body string   `json:"body"`
	Lang Language `json:"lang"`
}

// IntentKind classifies what an interpreted message is trying to do.
type IntentKind string

const (
	IntentConfirm IntentKind = "CONFIRM"
	IntentDeny    IntentKind = "DENY"
	IntentData    IntentKind = "DATA"
	IntentUnknown IntentKind = "UNKNOWN"
)

// Interpretation is the ephemeral result of an interpreter call. It is
// produced per message, consumed immediately, and never persisted.
type Interpretation struct {
	Intent     IntentKind `json:"intent"`
	Value      string     `json:"value,omitempty"`
	Confidence float64    `json:"confidence"`
}
