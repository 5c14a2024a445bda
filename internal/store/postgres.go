// Package store provides storage backends for onboardbot.
//
// This file implements a PostgreSQL-backed store for conversation records,
// inbound dedup, tenants, and guarantors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/megurit/onboardbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// LoadOrCreate returns the conversation record for userID, inserting a fresh
// GREETING record if none exists. ON CONFLICT DO NOTHING makes the create
// atomic under concurrent first messages.
func (s *PostgresStore) LoadOrCreate(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	fresh := models.NewConversationRecord(userID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_records
			(user_id, current_state, current_field, context_data, ambiguous_count, language, version, created_at, updated_at)
		VALUES ($1, $2, '', '', 0, $3, 1, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`,
		fresh.UserID, fresh.CurrentState, fresh.Language, fresh.CreatedAt, fresh.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore LoadOrCreate insert failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to insert conversation record for %s: %w", userID, err)
	}

	rec, err := s.GetConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("conversation record for %s vanished after insert: %w", userID, models.ErrNotFound)
	}
	slog.Debug("PostgresStore LoadOrCreate succeeded", "userID", userID, "state", rec.CurrentState, "version", rec.Version)
	return rec, nil
}

// GetConversation retrieves the conversation record for userID, or nil.
func (s *PostgresStore) GetConversation(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_state, current_field, context_data, ambiguous_count, language, version, created_at, updated_at
		FROM conversation_records WHERE user_id = $1`, userID)

	rec, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversation not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "userID", userID)
		return nil, err
	}
	return rec, nil
}

// SaveConversation performs the optimistic version-guarded update.
func (s *PostgresStore) SaveConversation(ctx context.Context, rec *models.ConversationRecord) error {
	contextJSON, err := marshalContextData(rec.ContextData)
	if err != nil {
		slog.Error("PostgresStore SaveConversation JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversation_records
		SET current_state = $1, current_field = $2, context_data = $3, ambiguous_count = $4, language = $5,
		    version = version + 1, updated_at = $6
		WHERE user_id = $7 AND version = $8`,
		rec.CurrentState, rec.CurrentField, contextJSON, rec.AmbiguousCount, rec.Language,
		now, rec.UserID, rec.Version)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save conversation record for %s: %w", rec.UserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result for %s: %w", rec.UserID, err)
	}
	if affected == 0 {
		slog.Debug("PostgresStore SaveConversation version conflict", "userID", rec.UserID, "version", rec.Version)
		return models.ErrConflict
	}
	rec.Version++
	rec.UpdatedAt = now
	slog.Debug("PostgresStore SaveConversation succeeded", "userID", rec.UserID, "state", rec.CurrentState, "version", rec.Version)
	return nil
}

// FindTenantByPhone retrieves a tenant by canonical phone number, or nil.
func (s *PostgresStore) FindTenantByPhone(ctx context.Context, phone string) (*models.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, phone_number, id_number, property_name, apartment_number, number_of_rooms,
		       monthly_rent, move_in_date, occupation, family_status, number_of_children, documents_status,
		       created_at, updated_at
		FROM tenants WHERE phone_number = $1`, phone)

	t, err := scanTenantRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore FindTenantByPhone not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindTenantByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return t, nil
}

// UpdateTenant upserts a tenant record.
func (s *PostgresStore) UpdateTenant(ctx context.Context, t *models.Tenant) error {
	docsJSON, err := marshalDocumentsStatus(t.Documents)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, full_name, phone_number, id_number, property_name, apartment_number,
			number_of_rooms, monthly_rent, move_in_date, occupation, family_status, number_of_children,
			documents_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (phone_number) DO UPDATE SET
			full_name = EXCLUDED.full_name, id_number = EXCLUDED.id_number,
			occupation = EXCLUDED.occupation, family_status = EXCLUDED.family_status,
			number_of_children = EXCLUDED.number_of_children,
			documents_status = EXCLUDED.documents_status, updated_at = EXCLUDED.updated_at`,
		t.ID, t.FullName, t.PhoneNumber, nilIfEmpty(t.IDNumber), t.PropertyName, t.ApartmentNumber,
		t.NumberOfRooms, t.MonthlyRent, t.MoveInDate, nilIfEmpty(t.Occupation), nilIfEmpty(t.FamilyStatus),
		t.Children, docsJSON, t.CreatedAt, now)
	if err != nil {
		slog.Error("PostgresStore UpdateTenant failed", "error", err, "tenantID", t.ID)
		return fmt.Errorf("failed to update tenant %s: %w", t.ID, err)
	}
	slog.Debug("PostgresStore UpdateTenant succeeded", "tenantID", t.ID)
	return nil
}

// SaveGuarantor upserts a guarantor record keyed on phone number.
func (s *PostgresStore) SaveGuarantor(ctx context.Context, g *models.Guarantor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guarantors (id, tenant_id, guarantor_number, full_name, phone_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone_number) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id, guarantor_number = EXCLUDED.guarantor_number,
			full_name = EXCLUDED.full_name`,
		g.ID, g.TenantID, g.Number, g.FullName, g.PhoneNumber, g.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveGuarantor failed", "error", err, "guarantorID", g.ID)
		return fmt.Errorf("failed to save guarantor %s: %w", g.ID, err)
	}
	slog.Debug("PostgresStore SaveGuarantor succeeded", "guarantorID", g.ID, "number", g.Number)
	return nil
}

// FindGuarantorByPhone retrieves a guarantor by phone number, or nil.
func (s *PostgresStore) FindGuarantorByPhone(ctx context.Context, phone string) (*models.Guarantor, error) {
	var g models.Guarantor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, guarantor_number, full_name, phone_number, created_at
		FROM guarantors WHERE phone_number = $1`, phone).
		Scan(&g.ID, &g.TenantID, &g.Number, &g.FullName, &g.PhoneNumber, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindGuarantorByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return &g, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
