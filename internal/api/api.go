package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/megurit/onboardbot/internal/compose"
	"github.com/megurit/onboardbot/internal/document"
	"github.com/megurit/onboardbot/internal/engine"
	"github.com/megurit/onboardbot/internal/extract"
	"github.com/megurit/onboardbot/internal/genai"
	"github.com/megurit/onboardbot/internal/interpret"
	"github.com/megurit/onboardbot/internal/messaging"
	"github.com/megurit/onboardbot/internal/store"
	"github.com/megurit/onboardbot/internal/twiliowhatsapp"
	"github.com/megurit/onboardbot/internal/whatsapp"
)

// Defaults for the API server.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second

	// ChannelTwilio and ChannelWhatsmeow select the messaging transport.
	ChannelTwilio    = "twilio"
	ChannelWhatsmeow = "whatsmeow"
)

// Opts holds API server configuration.
type Opts struct {
	Addr    string
	Channel string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithChannel selects the messaging transport (twilio or whatsmeow).
func WithChannel(channel string) Option {
	return func(o *Opts) { o.Channel = channel }
}

// Server wires the engine, store, and messaging transport together and
// exposes the HTTP surface.
type Server struct {
	engine    *engine.Engine
	store     store.Store
	messenger messaging.Service
	twilio    *messaging.TwilioService // non-nil when the Twilio channel is active
	addr      string
}

// Run bootstraps the full service and blocks until shutdown.
func Run(waOpts []whatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr, Channel: ChannelTwilio}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var genaiClient genai.ClientInterface
	if client, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("GenAI client unavailable, running with deterministic rules only", "error", err)
	} else {
		genaiClient = client
	}

	srv := &Server{store: st, addr: cfg.Addr}
	if err := srv.buildMessenger(cfg.Channel, waOpts); err != nil {
		return err
	}

	// Guarantor outreach goes out through the same transport as replies.
	srv.engine = engine.NewEngine(
		st,
		extract.NewExtractor(),
		interpret.NewInterpreter(genaiClient),
		compose.NewComposer(),
		engine.WithClassifier(document.NewClassifier(genaiClient)),
		engine.WithNotifier(engine.NotifierFunc(srv.messenger.SendMessage)),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.serve(ctx)
}

// buildStore selects a backend from the configured DSN: PostgreSQL,
// SQLite, or in-memory when no DSN is set.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Info("Using SQLite store", "path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// buildMessenger constructs the selected transport.
func (s *Server) buildMessenger(channel string, waOpts []whatsapp.Option) error {
	switch channel {
	case ChannelTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return fmt.Errorf("failed to initialize Twilio client: %w", err)
		}
		ts := messaging.NewTwilioService(client)
		s.twilio = ts
		s.messenger = ts
	case ChannelWhatsmeow:
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize WhatsApp client: %w", err)
		}
		s.messenger = messaging.NewWhatsAppService(client)
	default:
		return fmt.Errorf("unknown messaging channel %q", channel)
	}
	slog.Debug("Server messenger configured", "channel", channel)
	return nil
}

// serve runs the HTTP server and the inbound message loop until ctx is done.
func (s *Server) serve(ctx context.Context) error {
	if err := s.messenger.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer s.messenger.Stop()

	go s.messageLoop(ctx)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	httpServer := &http.Server{Addr: s.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("onboardbot API running", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// registerRoutes mounts the HTTP endpoints.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/conversations/", s.conversationHandler)
	if s.twilio != nil {
		mux.HandleFunc("/webhook/twilio", s.twilio.WebhookHandler)
	}
}

// messageLoop drains inbound messages and feeds them through the engine.
// Replies go back out through the same transport the message arrived on.
func (s *Server) messageLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.messenger.Messages():
			if !ok {
				return
			}
			reply, err := s.engine.ProcessMessage(ctx, &msg)
			if err != nil {
				slog.Error("Server message processing failed", "userID", msg.UserID, "error", err)
			}
			if reply == nil {
				continue
			}
			if err := s.messenger.SendMessage(ctx, msg.UserID, reply.Body); err != nil {
				slog.Error("Server failed to send reply", "userID", msg.UserID, "error", err)
			}
		}
	}
}
