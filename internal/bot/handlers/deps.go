package handlers

import (
	"context"
	"log/slog"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/format"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/prefs"
	"github.com/ryanhideo/tablescout/internal/recommend"
)

// Messenger delivers outbound message units. Implemented by the LINE
// client; faked in tests.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, units []format.MessageUnit) error
	Push(ctx context.Context, to string, units []format.MessageUnit) error
}

// Recommender answers search queries. Implemented by the orchestrator.
type Recommender interface {
	Recommend(ctx context.Context, conversationID, query string) *recommend.Outcome
}

// HandlerDeps holds the dependencies shared by all event handlers.
type HandlerDeps struct {
	Store        database.Store
	Prefs        *prefs.Service
	Graph        *graph.Aggregator
	Orchestrator Recommender
	Messenger    Messenger
	Logger       *slog.Logger
}
