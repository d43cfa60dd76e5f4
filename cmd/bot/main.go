// Command bot runs the tablescout LINE restaurant-recommendation bot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryanhideo/tablescout/internal/ai"
	"github.com/ryanhideo/tablescout/internal/bot"
	"github.com/ryanhideo/tablescout/internal/bot/handlers"
	"github.com/ryanhideo/tablescout/internal/bot/tasks"
	"github.com/ryanhideo/tablescout/internal/classify"
	"github.com/ryanhideo/tablescout/internal/config"
	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/gather"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/history"
	"github.com/ryanhideo/tablescout/internal/line"
	"github.com/ryanhideo/tablescout/internal/logger"
	"github.com/ryanhideo/tablescout/internal/prefs"
	"github.com/ryanhideo/tablescout/internal/recommend"
	"github.com/ryanhideo/tablescout/internal/search"
	"github.com/ryanhideo/tablescout/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to initialize database", "error", err)
		return 1
	}
	defer database.CloseDB(db)

	store := database.NewStore(db, log)

	aiClient, err := ai.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "error", err)
		return 1
	}

	searchClient := search.NewClient(cfg, log)
	sessions := session.NewManager(store, cfg.Session.TTL, log)
	prefSvc := prefs.NewService(store, log)
	aggregator := graph.NewAggregator(store, log)
	searcher := history.NewSearcher(store, log)
	classifier := classify.NewClassifier(aiClient, log)
	gatherer := gather.NewGatherer(aiClient, prefSvc, aggregator, searcher, log)
	orchestrator := recommend.NewOrchestrator(classifier, gatherer, sessions, searchClient, searcher, log)

	deps := &handlers.HandlerDeps{
		Store:        store,
		Prefs:        prefSvc,
		Graph:        aggregator,
		Orchestrator: orchestrator,
		Messenger:    line.NewClient(cfg.Line.ChannelAccessToken, log),
		Logger:       log,
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Store: store, Logger: log})
	scheduler, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to initialize scheduler", "error", err)
		return 1
	}

	server := bot.NewServer(cfg.Server.Addr, cfg.Line.ChannelSecret, deps, log)

	app := bot.NewBot(log, cfg, db, server, scheduler)
	if err := app.Run(ctx); err != nil {
		log.Error("Bot exited with error", "error", err)
		return 1
	}
	return 0
}
