package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ryanhideo/tablescout/internal/bot/handlers"
	"github.com/ryanhideo/tablescout/internal/line"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// Server is the webhook HTTP server.
type Server struct {
	httpServer    *http.Server
	channelSecret string
	deps          *handlers.HandlerDeps
	logger        *slog.Logger
}

// NewServer builds the webhook server with its routes.
func NewServer(addr, channelSecret string, deps *handlers.HandlerDeps, logger *slog.Logger) *Server {
	s := &Server{
		channelSecret: channelSecret,
		deps:          deps,
		logger:        logger.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/callback", s.handleCallback)
	r.Get("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webhook server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error during server shutdown", "error", err)
			return err
		}
		s.logger.Info("Webhook server stopped gracefully.")
		return nil
	case err := <-errCh:
		return err
	}
}

// handleCallback verifies the signature and processes every event in the
// delivery before acknowledging it.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !line.ValidSignature(s.channelSecret, body, r.Header.Get("X-Line-Signature")) {
		s.logger.WarnContext(ctx, "Webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var payload line.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.ErrorContext(ctx, "Failed to decode webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		handlers.HandleEvent(ctx, s.deps, event)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
