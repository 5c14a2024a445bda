package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/megurit/onboardbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalContextData converts a context data map to its JSON column value.
// An empty map serializes to the empty string so fresh rows stay compact.
func marshalContextData(data map[models.Field]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context data: %w", err)
	}
	return string(b), nil
}

// unmarshalContextData parses a JSON column value into a context data map.
// Corrupt JSON yields an empty map rather than a failed load.
func unmarshalContextData(raw string) map[models.Field]string {
	data := make(map[models.Field]string)
	if raw == "" {
		return data
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return make(map[models.Field]string)
	}
	return data
}

// marshalDocumentsStatus converts a tenant's document status map to JSON.
func marshalDocumentsStatus(docs map[models.DocumentType]models.DocumentStatus) (string, error) {
	if len(docs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal documents status: %w", err)
	}
	return string(b), nil
}

// scanConversationRow scans a ConversationRecord from a single sql.Row.
func scanConversationRow(row *sql.Row) (*models.ConversationRecord, error) {
	var rec models.ConversationRecord
	var contextJSON string
	err := row.Scan(
		&rec.UserID, &rec.CurrentState, &rec.CurrentField, &contextJSON,
		&rec.AmbiguousCount, &rec.Language, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ContextData = unmarshalContextData(contextJSON)
	return &rec, nil
}

// scanTenantRow scans a Tenant from a single sql.Row.
func scanTenantRow(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	var idNumber, occupation, familyStatus, docsJSON sql.NullString
	var moveIn sql.NullTime
	err := row.Scan(
		&t.ID, &t.FullName, &t.PhoneNumber, &idNumber, &t.PropertyName, &t.ApartmentNumber,
		&t.NumberOfRooms, &t.MonthlyRent, &moveIn, &occupation, &familyStatus, &t.Children,
		&docsJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.IDNumber = idNumber.String
	t.Occupation = occupation.String
	t.FamilyStatus = familyStatus.String
	if moveIn.Valid {
		t.MoveInDate = moveIn.Time
	}
	if docsJSON.String != "" {
		t.Documents = make(map[models.DocumentType]models.DocumentStatus)
		if err := json.Unmarshal([]byte(docsJSON.String), &t.Documents); err != nil {
			t.Documents = make(map[models.DocumentType]models.DocumentStatus)
		}
	}
	return &t, nil
}
