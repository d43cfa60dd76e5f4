// Package bot wires the application components together and manages their
// lifecycle.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/ryanhideo/tablescout/internal/config"
)

// Bot is the application orchestrator. It runs the webhook server and the
// task scheduler, shutting both down gracefully on context cancellation.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	db        *sqlx.DB
	server    *Server
	scheduler *Scheduler
}

// NewBot creates the bot over its pre-built components.
func NewBot(logger *slog.Logger, cfg *config.Config, db *sqlx.DB, server *Server, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot"),
		cfg:       cfg,
		db:        db,
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until shutdown or failure.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.server.Run(gCtx)
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return err
		}
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		return b.scheduler.Stop()
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot stopped gracefully.")
	return nil
}
