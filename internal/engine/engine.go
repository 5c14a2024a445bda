// Package engine implements the onboarding conversation state machine.
//
// Each inbound message is one unit of work: claim the idempotency key, lock
// the user, load fresh state, run the transition handler for the current
// state, persist with an optimistic version check, then reload the persisted
// record before composing the reply. The reload is what keeps every
// downstream decision anchored to post-transition state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/megurit/onboardbot/internal/compose"
	"github.com/megurit/onboardbot/internal/document"
	"github.com/megurit/onboardbot/internal/extract"
	"github.com/megurit/onboardbot/internal/models"
	"github.com/megurit/onboardbot/internal/store"
	"github.com/megurit/onboardbot/internal/util"
)

// Defaults for the engine's bounded operations.
const (
	DefaultAmbiguousBound  = 3
	DefaultConflictRetries = 3
	DefaultStoreTimeout    = 2 * time.Second

	// minDataConfidence gates interpreter DATA hints. Below it the reply
	// counts as unresolvable.
	minDataConfidence = 0.6
)

// fieldIncomeDocument is a context key recording which income document the
// tenant's occupation requires (payslips or pnl). Set once when document
// collection begins.
const fieldIncomeDocument models.Field = "income_document"

// Interpreter produces an advisory interpretation of free-form user text.
type Interpreter interface {
	Interpret(ctx context.Context, state models.ConversationState, field models.Field, raw string) (models.Interpretation, error)
}

// Notifier delivers out-of-band messages to recipients other than the active
// user, such as newly captured guarantors.
type Notifier interface {
	Notify(ctx context.Context, recipient, body string) error
}

// NotifierFunc adapts a send function to the Notifier interface.
type NotifierFunc func(ctx context.Context, recipient, body string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, recipient, body string) error {
	return f(ctx, recipient, body)
}

// Opts holds engine configuration.
type Opts struct {
	AmbiguousBound  int
	ConflictRetries int
	StoreTimeout    time.Duration
	Processor       document.Processor
	Classifier      *document.Classifier
	Notifier        Notifier
}

// Option configures the engine.
type Option func(*Opts)

// WithAmbiguousBound sets how many consecutive unresolvable replies for the
// same field are re-prompted before escalating to a human.
func WithAmbiguousBound(n int) Option {
	return func(o *Opts) { o.AmbiguousBound = n }
}

// WithConflictRetries sets how many times a version conflict is retried with
// freshly loaded state before the message fails.
func WithConflictRetries(n int) Option {
	return func(o *Opts) { o.ConflictRetries = n }
}

// WithStoreTimeout bounds each individual store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *Opts) { o.StoreTimeout = d }
}

// WithDocumentProcessor sets the collaborator that validates uploads.
func WithDocumentProcessor(p document.Processor) Option {
	return func(o *Opts) { o.Processor = p }
}

// WithClassifier sets the occupation-to-income-document classifier.
func WithClassifier(c *document.Classifier) Option {
	return func(o *Opts) { o.Classifier = c }
}

// WithNotifier sets the channel used to reach captured guarantors on their
// own numbers. Without one, guarantor outreach is skipped.
func WithNotifier(n Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// Engine orchestrates onboarding conversations.
type Engine struct {
	store       store.Store
	extractor   *extract.Extractor
	interpreter Interpreter
	composer    *compose.Composer
	processor   document.Processor
	classifier  *document.Classifier
	notifier    Notifier

	ambiguousBound  int
	conflictRetries int
	storeTimeout    time.Duration

	mu        sync.RWMutex
	userLocks map[string]*sync.Mutex
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(st store.Store, ex *extract.Extractor, in Interpreter, co *compose.Composer, opts ...Option) *Engine {
	o := Opts{
		AmbiguousBound:  DefaultAmbiguousBound,
		ConflictRetries: DefaultConflictRetries,
		StoreTimeout:    DefaultStoreTimeout,
		Processor:       document.AcceptingProcessor{},
		Classifier:      document.NewClassifier(nil),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		store:           st,
		extractor:       ex,
		interpreter:     in,
		composer:        co,
		processor:       o.Processor,
		classifier:      o.Classifier,
		notifier:        o.Notifier,
		ambiguousBound:  o.AmbiguousBound,
		conflictRetries: o.ConflictRetries,
		storeTimeout:    o.StoreTimeout,
		userLocks:       make(map[string]*sync.Mutex),
	}
}

// outcome carries transition results that the persisted record alone cannot
// express: acknowledgment text and whether the reply re-asks or stays silent.
type outcome struct {
	ack     string
	clarify bool
	silent  bool
}

// ProcessMessage handles one inbound delivery end to end and returns the
// reply to send, or nil when the delivery is a duplicate or the conversation
// is already handed off to a human.
func (e *Engine) ProcessMessage(ctx context.Context, msg *models.InboundMessage) (*models.OutboundMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inbound message: %w", err)
	}

	// Duplicate suppression happens before the per-user lock so redelivered
	// messages stay cheap. The claim is atomic: exactly one delivery of a
	// given transport message ID wins.
	fresh, err := e.recordInbound(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("record inbound message: %w", err)
	}
	if !fresh {
		slog.Debug("Engine ProcessMessage suppressed duplicate delivery", "userID", msg.UserID, "messageID", msg.MessageID)
		return nil, nil
	}

	lock := e.userLock(msg.UserID)
	lock.Lock()
	defer lock.Unlock()

	tenant := e.loadTenant(ctx, msg.UserID)

	var (
		rec *models.ConversationRecord
		out outcome
	)
	for attempt := 0; ; attempt++ {
		rec, err = e.loadConversation(ctx, msg.UserID)
		if err != nil {
			return nil, fmt.Errorf("load conversation for %s: %w", msg.UserID, err)
		}

		out, err = e.transition(ctx, rec, tenant, msg)
		if err != nil {
			return nil, fmt.Errorf("transition for %s: %w", msg.UserID, err)
		}

		err = e.saveConversation(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("save conversation for %s: %w", msg.UserID, err)
		}
		if attempt+1 >= e.conflictRetries {
			slog.Debug("Engine ProcessMessage exhausted conflict retries", "userID", msg.UserID, "attempts", attempt+1)
			fallback := e.composer.Error(rec.Language)
			return &fallback, fmt.Errorf("conversation update for %s lost %d races: %w", msg.UserID, attempt+1, models.ErrConflict)
		}
		slog.Debug("Engine ProcessMessage retrying after version conflict", "userID", msg.UserID, "attempt", attempt+1)
	}

	// Compose from the just-persisted record, never the pre-write value.
	freshRec, err := e.getConversation(ctx, msg.UserID)
	if err != nil || freshRec == nil {
		slog.Debug("Engine ProcessMessage reload after save failed", "userID", msg.UserID, "error", err)
		freshRec = rec
	}

	reply := e.respond(freshRec, tenant, out)

	if err := e.markProcessed(ctx, msg.MessageID); err != nil {
		slog.Debug("Engine ProcessMessage failed to mark processed", "messageID", msg.MessageID, "error", err)
	}

	slog.Debug("Engine ProcessMessage succeeded",
		"userID", msg.UserID, "state", freshRec.CurrentState, "field", freshRec.CurrentField)
	return reply, nil
}

// State returns the current conversation record for a user, or nil if the
// user has never messaged.
func (e *Engine) State(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	return e.getConversation(ctx, userID)
}

// respond renders the single outbound message for the post-transition record.
func (e *Engine) respond(rec *models.ConversationRecord, tenant *models.Tenant, out outcome) *models.OutboundMessage {
	if out.silent {
		return nil
	}
	var prompt models.OutboundMessage
	switch {
	case rec.CurrentState == models.StateConfirmation:
		prompt = e.composer.ConfirmDetails(tenant, rec.Language)
	case out.clarify:
		prompt = e.composer.Clarify(rec.CurrentState, rec.CurrentField, rec.Language)
	default:
		prompt = e.composer.Prompt(rec.CurrentState, rec.CurrentField, rec.Language)
	}
	if out.ack != "" {
		prompt.Body = out.ack + "\n\n" + prompt.Body
	}
	return &prompt
}

// userLock returns the serialization mutex for a user, creating it on first
// use. Locks are never removed; the map grows with the active user set.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.RLock()
	lock, ok := e.userLocks[userID]
	e.mu.RUnlock()
	if ok {
		return lock
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if lock, ok = e.userLocks[userID]; ok {
		return lock
	}
	lock = &sync.Mutex{}
	e.userLocks[userID] = lock
	return lock
}

// loadTenant fetches the tenant record for the user's phone number. A
// missing tenant does not block the conversation; a placeholder is used.
func (e *Engine) loadTenant(ctx context.Context, userID string) *models.Tenant {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	t, err := e.store.FindTenantByPhone(ctx, userID)
	if err != nil {
		slog.Debug("Engine loadTenant failed", "userID", userID, "error", err)
	}
	if t == nil {
		t = &models.Tenant{ID: util.GenerateTenantID(), PhoneNumber: userID}
	}
	return t
}

// Store calls below each run under their own bounded timeout so a slow
// backend cannot pin the per-user lock indefinitely.

func (e *Engine) recordInbound(ctx context.Context, msg *models.InboundMessage) (bool, error) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.RecordInbound(ctx, msg.MessageID, msg.UserID)
}

func (e *Engine) loadConversation(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.LoadOrCreate(ctx, userID)
}

func (e *Engine) getConversation(ctx context.Context, userID string) (*models.ConversationRecord, error) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.GetConversation(ctx, userID)
}

func (e *Engine) saveConversation(ctx context.Context, rec *models.ConversationRecord) error {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.SaveConversation(ctx, rec)
}

func (e *Engine) markProcessed(ctx context.Context, messageID string) error {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.store.MarkProcessed(ctx, messageID)
}

func (e *Engine) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}
