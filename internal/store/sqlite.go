// Package store provides storage backends for onboardbot.
//
// This file implements an SQLite-backed store for conversation records,
// inbound dedup, tenants, and guarantors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/megurit/onboardbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// LoadOrCreate returns the conversation record for userID, inserting a fresh
// GREETING record if none exists. INSERT OR IGNORE makes the create atomic
// under concurrent first messages; losers of the race read the winner's row.
func (s *SQLiteStore) LoadOrCreate(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	fresh := models.NewConversationRecord(userID)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_records
			(user_id, current_state, current_field, context_data, ambiguous_count, language, version, created_at, updated_at)
		VALUES (?, ?, '', '', 0, ?, 1, ?, ?)`,
		fresh.UserID, fresh.CurrentState, fresh.Language, fresh.CreatedAt, fresh.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore LoadOrCreate insert failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to insert conversation record for %s: %w", userID, err)
	}

	rec, err := s.GetConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("conversation record for %s vanished after insert: %w", userID, models.ErrNotFound)
	}
	slog.Debug("SQLiteStore LoadOrCreate succeeded", "userID", userID, "state", rec.CurrentState, "version", rec.Version)
	return rec, nil
}

// GetConversation retrieves the conversation record for userID, or nil.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_state, current_field, context_data, ambiguous_count, language, version, created_at, updated_at
		FROM conversation_records WHERE user_id = ?`, userID)

	rec, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversation not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "userID", userID)
		return nil, err
	}
	return rec, nil
}

// SaveConversation performs the optimistic version-guarded update.
func (s *SQLiteStore) SaveConversation(ctx context.Context, rec *models.ConversationRecord) error {
	contextJSON, err := marshalContextData(rec.ContextData)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversation_records
		SET current_state = ?, current_field = ?, context_data = ?, ambiguous_count = ?, language = ?,
		    version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		rec.CurrentState, rec.CurrentField, contextJSON, rec.AmbiguousCount, rec.Language,
		now, rec.UserID, rec.Version)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save conversation record for %s: %w", rec.UserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result for %s: %w", rec.UserID, err)
	}
	if affected == 0 {
		slog.Debug("SQLiteStore SaveConversation version conflict", "userID", rec.UserID, "version", rec.Version)
		return models.ErrConflict
	}
	rec.Version++
	rec.UpdatedAt = now
	slog.Debug("SQLiteStore SaveConversation succeeded", "userID", rec.UserID, "state", rec.CurrentState, "version", rec.Version)
	return nil
}

// FindTenantByPhone retrieves a tenant by canonical phone number, or nil.
func (s *SQLiteStore) FindTenantByPhone(ctx context.Context, phone string) (*models.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, phone_number, id_number, property_name, apartment_number, number_of_rooms,
		       monthly_rent, move_in_date, occupation, family_status, number_of_children, documents_status,
		       created_at, updated_at
		FROM tenants WHERE phone_number = ?`, phone)

	t, err := scanTenantRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore FindTenantByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindTenantByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return t, nil
}

// UpdateTenant upserts a tenant record.
func (s *SQLiteStore) UpdateTenant(ctx context.Context, t *models.Tenant) error {
	docsJSON, err := marshalDocumentsStatus(t.Documents)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, full_name, phone_number, id_number, property_name, apartment_number,
			number_of_rooms, monthly_rent, move_in_date, occupation, family_status, number_of_children,
			documents_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
			full_name = excluded.full_name, id_number = excluded.id_number,
			occupation = excluded.occupation, family_status = excluded.family_status,
			number_of_children = excluded.number_of_children,
			documents_status = excluded.documents_status, updated_at = excluded.updated_at`,
		t.ID, t.FullName, t.PhoneNumber, nilIfEmpty(t.IDNumber), t.PropertyName, t.ApartmentNumber,
		t.NumberOfRooms, t.MonthlyRent, t.MoveInDate, nilIfEmpty(t.Occupation), nilIfEmpty(t.FamilyStatus),
		t.Children, docsJSON, t.CreatedAt, now)
	if err != nil {
		slog.Error("SQLiteStore UpdateTenant failed", "error", err, "tenantID", t.ID)
		return fmt.Errorf("failed to update tenant %s: %w", t.ID, err)
	}
	slog.Debug("SQLiteStore UpdateTenant succeeded", "tenantID", t.ID)
	return nil
}

// SaveGuarantor upserts a guarantor record keyed on phone number.
func (s *SQLiteStore) SaveGuarantor(ctx context.Context, g *models.Guarantor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guarantors (id, tenant_id, guarantor_number, full_name, phone_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
			tenant_id = excluded.tenant_id, guarantor_number = excluded.guarantor_number,
			full_name = excluded.full_name`,
		g.ID, g.TenantID, g.Number, g.FullName, g.PhoneNumber, g.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveGuarantor failed", "error", err, "guarantorID", g.ID)
		return fmt.Errorf("failed to save guarantor %s: %w", g.ID, err)
	}
	slog.Debug("SQLiteStore SaveGuarantor succeeded", "guarantorID", g.ID, "number", g.Number)
	return nil
}

// FindGuarantorByPhone retrieves a guarantor by phone number, or nil.
func (s *SQLiteStore) FindGuarantorByPhone(ctx context.Context, phone string) (*models.Guarantor, error) {
	var g models.Guarantor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, guarantor_number, full_name, phone_number, created_at
		FROM guarantors WHERE phone_number = ?`, phone).
		Scan(&g.ID, &g.TenantID, &g.Number, &g.FullName, &g.PhoneNumber, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindGuarantorByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return &g, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
