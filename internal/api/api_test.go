package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/megurit/onboardbot/internal/compose"
	"github.com/megurit/onboardbot/internal/engine"
	"github.com/megurit/onboardbot/internal/extract"
	"github.com/megurit/onboardbot/internal/models"
	"github.com/megurit/onboardbot/internal/store"
)

type staticInterpreter struct{}

func (staticInterpreter) Interpret(ctx context.Context, state models.ConversationState, field models.Field, raw string) (models.Interpretation, error) {
	return models.Interpretation{Intent: models.IntentUnknown}, nil
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	eng := engine.NewEngine(st, extract.NewExtractor(), staticInterpreter{}, compose.NewComposer())
	return &Server{engine: eng, store: st, addr: DefaultAddr}, st
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("status = %q", res.Status)
	}
}

func TestConversationHandlerNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/conversations/+972500000000", nil)
	w := httptest.NewRecorder()
	srv.conversationHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConversationHandlerReturnsRecord(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	msg := &models.InboundMessage{
		UserID:    "+972501234567",
		Body:      "hello",
		MessageID: "wamid-1",
		Timestamp: time.Now(),
	}
	if _, err := srv.engine.ProcessMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations/+972501234567", nil)
	w := httptest.NewRecorder()
	srv.conversationHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Status string                    `json:"status"`
		Result models.ConversationRecord `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.Result.CurrentState != models.StateConfirmation {
		t.Errorf("state = %s, want CONFIRMATION", res.Result.CurrentState)
	}
}

func TestConversationHandlerRejectsBadPath(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/conversations/", nil)
	w := httptest.NewRecorder()
	srv.conversationHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConversationHandlerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/conversations/+972501234567", nil)
	w := httptest.NewRecorder()
	srv.conversationHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
