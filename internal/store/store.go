// Package store provides storage backends for onboardbot.
//
// It includes an in-memory store for tests and small deployments, plus
// SQLite and PostgreSQL backed stores for persistent deployments.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/megurit/onboardbot/internal/models"
)

// ConversationRepo persists conversation records keyed by user ID.
type ConversationRepo interface {
	// LoadOrCreate returns the conversation record for userID, creating a
	// fresh GREETING record if none exists. Creation is atomic with respect
	// to concurrent first messages: exactly one record is created and losers
	// of the race receive the winner's record.
	LoadOrCreate(ctx context.Context, userID string) (*models.ConversationRecord, error)

	// GetConversation returns the record for userID, or nil if none exists.
	GetConversation(ctx context.Context, userID string) (*models.ConversationRecord, error)

	// SaveConversation performs an optimistic update guarded by the record's
	// Version. It returns models.ErrConflict if the stored version advanced
	// since the record was loaded; callers reload and retry rather than
	// overwrite. On success the record's Version is advanced.
	SaveConversation(ctx context.Context, rec *models.ConversationRecord) error
}

// DedupRepo detects duplicate inbound transport deliveries.
type DedupRepo interface {
	// IsDuplicate checks if a transport message ID was already recorded.
	IsDuplicate(ctx context.Context, messageID string) (bool, error)

	// RecordInbound atomically claims a message ID. Returns false if the
	// message was already recorded (duplicate delivery).
	RecordInbound(ctx context.Context, messageID, userID string) (bool, error)

	// MarkProcessed sets the processed timestamp for a message.
	MarkProcessed(ctx context.Context, messageID string) error
}

// TenantRepo persists tenant and guarantor records.
type TenantRepo interface {
	FindTenantByPhone(ctx context.Context, phone string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, t *models.Tenant) error
	SaveGuarantor(ctx context.Context, g *models.Guarantor) error
	FindGuarantorByPhone(ctx context.Context, phone string) (*models.Guarantor, error)
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	ConversationRepo
	DedupRepo
	TenantRepo
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store used by tests and
// single-process deployments without a database.
type InMemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.ConversationRecord
	dedup         map[string]dedupEntry
	tenants       map[string]*models.Tenant    // keyed by phone
	guarantors    map[string]*models.Guarantor // keyed by phone
}

type dedupEntry struct {
	userID      string
	receivedAt  time.Time
	processedAt *time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.ConversationRecord),
		dedup:         make(map[string]dedupEntry),
		tenants:       make(map[string]*models.Tenant),
		guarantors:    make(map[string]*models.Guarantor),
	}
}

// LoadOrCreate returns the record for userID, creating one at GREETING if
// absent. The single mutex makes creation atomic across racing callers.
func (s *InMemoryStore) LoadOrCreate(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.conversations[userID]; ok {
		return rec.Clone(), nil
	}
	rec := models.NewConversationRecord(userID)
	s.conversations[userID] = rec.Clone()
	slog.Debug("InMemoryStore LoadOrCreate created record", "userID", userID)
	return rec, nil
}

// GetConversation returns the record for userID, or nil if none exists.
func (s *InMemoryStore) GetConversation(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conversations[userID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// SaveConversation stores rec if its version matches the stored version.
func (s *InMemoryStore) SaveConversation(ctx context.Context, rec *models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.conversations[rec.UserID]
	if !ok {
		return fmt.Errorf("save conversation for %s: %w", rec.UserID, models.ErrNotFound)
	}
	if stored.Version != rec.Version {
		slog.Debug("InMemoryStore SaveConversation version conflict", "userID", rec.UserID, "stored", stored.Version, "got", rec.Version)
		return models.ErrConflict
	}
	rec.Version++
	rec.UpdatedAt = time.Now()
	s.conversations[rec.UserID] = rec.Clone()
	slog.Debug("InMemoryStore SaveConversation succeeded", "userID", rec.UserID, "state", rec.CurrentState, "version", rec.Version)
	return nil
}

func (s *InMemoryStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = dedupEntry{userID: userID, receivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.dedup[messageID]
	if !ok {
		return fmt.Errorf("mark processed for %s: %w", messageID, models.ErrNotFound)
	}
	now := time.Now()
	entry.processedAt = &now
	s.dedup[messageID] = entry
	return nil
}

func (s *InMemoryStore) FindTenantByPhone(ctx context.Context, phone string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[phone]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) UpdateTenant(ctx context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.UpdatedAt = time.Now()
	s.tenants[t.PhoneNumber] = &cp
	return nil
}

func (s *InMemoryStore) SaveGuarantor(ctx context.Context, g *models.Guarantor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.guarantors[g.PhoneNumber] = &cp
	return nil
}

func (s *InMemoryStore) FindGuarantorByPhone(ctx context.Context, phone string) (*models.Guarantor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guarantors[phone]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)
