package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/megurit/onboardbot/internal/models"
	"github.com/megurit/onboardbot/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
// Inbound messages arrive via webhook rather than a live connection.
type TwilioService struct {
	client   twiliowhatsapp.Sender
	messages chan models.InboundMessage
	done     chan struct{}
	mu       sync.RWMutex
	stopped  bool
}

// NewTwilioService creates a new TwilioService over the given client.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:   client,
		messages: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient applies the digits-only phone rule.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start is a no-op for Twilio (no live connection; inbound is webhook-driven).
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.messages)
	}()

	return nil
}

// SendMessage sends a message via the Twilio API.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Messages returns the channel of inbound messages fed by the webhook.
func (s *TwilioService) Messages() <-chan models.InboundMessage {
	return s.messages
}

// WebhookHandler handles inbound Twilio webhook requests. It parses incoming
// messages, including document uploads (MediaUrl0), and emits them as
// models.InboundMessage values.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Twilio webhook received")

	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	messageSid := r.FormValue("MessageSid")
	mediaURL := r.FormValue("MediaUrl0")
	mediaType := r.FormValue("MediaContentType0")

	if from == "" || messageSid == "" || (body == "" && mediaURL == "") {
		slog.Warn("Twilio webhook missing fields", "from", from, "message_sid", messageSid)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	// Twilio prefixes WhatsApp senders with "whatsapp:".
	from = strings.TrimPrefix(from, "whatsapp:")

	msg := models.InboundMessage{
		UserID:    from,
		Body:      body,
		MessageID: messageSid,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		Timestamp: time.Now(),
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", from, "has_media", mediaURL != "")
	s.safeEmitMessage(msg)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitMessage pushes an inbound message onto the channel without
// blocking the webhook response.
func (s *TwilioService) safeEmitMessage(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.UserID)
		return
	}

	select {
	case s.messages <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.UserID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService messages channel blocked, dropping message", "from", msg.UserID)
	}
}
