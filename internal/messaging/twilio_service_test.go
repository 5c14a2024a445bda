package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/megurit/onboardbot/internal/twiliowhatsapp"
)

func postWebhook(t *testing.T, s *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.WebhookHandler(w, req)
	return w
}

func TestWebhookEmitsInboundMessage(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	w := postWebhook(t, s, url.Values{
		"From":       {"whatsapp:+972501234567"},
		"Body":       {"hello"},
		"MessageSid": {"SM123"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	select {
	case msg := <-s.Messages():
		if msg.UserID != "+972501234567" {
			t.Errorf("userID = %q", msg.UserID)
		}
		if msg.MessageID != "SM123" || msg.Body != "hello" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message emitted")
	}
}

func TestWebhookEmitsMediaMessage(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	w := postWebhook(t, s, url.Values{
		"From":              {"whatsapp:+972501234567"},
		"MessageSid":        {"SM456"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"image/jpeg"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	select {
	case msg := <-s.Messages():
		if msg.MediaURL != "https://api.twilio.com/media/ME1" || msg.MediaType != "image/jpeg" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message emitted")
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	w := postWebhook(t, s, url.Values{"From": {"whatsapp:+972501234567"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendMessageAfterStop(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.SendMessage(context.Background(), "+972501234567", "hi"); err != ErrServiceStopped {
		t.Errorf("err = %v, want ErrServiceStopped", err)
	}
}

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	got, err := s.ValidateAndCanonicalizeRecipient("+972 50-123-4567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "972501234567" {
		t.Errorf("got %q", got)
	}

	for _, bad := range []string{"", "abc", "123"} {
		if _, err := s.ValidateAndCanonicalizeRecipient(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
