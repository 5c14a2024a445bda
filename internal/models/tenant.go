// Package models defines tenant and guarantor records for onboardbot.
package models

import "time"

// DocumentType identifies a required onboarding document.
type DocumentType string

const (
	DocumentIDCard         DocumentType = "id_card"
	DocumentSephach        DocumentType = "sephach"
	DocumentPayslips       DocumentType = "payslips"
	DocumentPNL            DocumentType = "pnl"
	DocumentBankStatements DocumentType = "bank_statements"
)

// DocumentStatus tracks the processing state of one uploaded document.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusValidated DocumentStatus = "validated"
	DocumentStatusRejected  DocumentStatus = "rejected"
)

// DocumentField maps a document type to its conversation field.
func (d DocumentType) Field() Field {
	return Field(d)
}

// Tenant is the onboarding subject: identity, property details, and the
// personal fields collected during the conversation.
type Tenant struct {
	ID              string                          `json:"id"`
	FullName        string                          `json:"full_name"`
	PhoneNumber     string                          `json:"phone_number"`
	IDNumber        string                          `json:"id_number,omitempty"`
	PropertyName    string                          `json:"property_name"`
	ApartmentNumber string                          `json:"apartment_number"`
	NumberOfRooms   int                             `json:"number_of_rooms"`
	MonthlyRent     float64                         `json:"monthly_rent_amount"`
	MoveInDate      time.Time                       `json:"move_in_date"`
	Occupation      string                          `json:"occupation,omitempty"`
	FamilyStatus    string                          `json:"family_status,omitempty"`
	Children        int                             `json:"number_of_children"`
	Documents       map[DocumentType]DocumentStatus `json:"documents_status,omitempty"`
	CreatedAt       time.Time                       `json:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at"`
}

// Guarantor is one of the two guarantors a tenant names during onboarding.
type Guarantor struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Number      int       `json:"guarantor_number"` // 1 or 2
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentExtractionResult is the structured outcome a document collaborator
// returns for a submitted upload. The engine only consumes this result; it
// never inspects raw document bytes.
type DocumentExtractionResult struct {
	Type          DocumentType      `json:"type"`
	Valid         bool              `json:"valid"`
	ExtractedData map[string]string `json:"extracted_data,omitempty"`
	Errors        []string          `json:"errors,omitempty"`
	FileURL       string            `json:"file_url,omitempty"`
}
