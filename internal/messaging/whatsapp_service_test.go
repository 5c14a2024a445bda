package messaging

import (
	"context"
	"testing"

	"github.com/megurit/onboardbot/internal/whatsapp"
)

func TestWhatsAppServiceSendMessage(t *testing.T) {
	s := NewWhatsAppService(whatsapp.NewMockClient())

	if err := s.SendMessage(context.Background(), "+972 50 123 4567", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := s.SendMessage(context.Background(), "not-a-number", "hello"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWhatsAppServiceStartWithMock(t *testing.T) {
	s := NewWhatsAppService(whatsapp.NewMockClient())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
