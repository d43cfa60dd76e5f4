// Package session owns the external search-provider conversation handle,
// including its liveness window.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanhideo/tablescout/internal/database"
)

// Manager tracks one search session token per conversation. Tokens are
// never deleted; staleness is computed at read time.
type Manager struct {
	store  database.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a session manager with the given liveness window.
func NewManager(store database.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "session"),
	}
}

// LiveToken returns the conversation's session token when it is still
// within the liveness window. A token aged exactly at or past the window
// is stale and reported as absent.
func (m *Manager) LiveToken(ctx context.Context, conversationID string) (string, bool, error) {
	state, err := m.store.Session(ctx, conversationID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load session: %w", err)
	}
	if state == nil {
		return "", false, nil
	}

	elapsed := m.now().Sub(state.RefreshedAt)
	if elapsed >= m.ttl {
		m.logger.DebugContext(ctx, "Session token stale",
			"conversation_id", conversationID, "age", elapsed)
		return "", false, nil
	}
	return state.Token, true, nil
}

// Record unconditionally overwrites the conversation's token and refresh
// timestamp.
func (m *Manager) Record(ctx context.Context, conversationID, token string) error {
	if err := m.store.RecordSession(ctx, conversationID, token, m.now()); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}
