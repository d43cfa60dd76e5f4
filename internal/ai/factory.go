package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryanhideo/tablescout/internal/config"
)

// New creates the chat completion client selected by cfg.AI.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, error) {
	switch cfg.AI.Backend {
	case "openai":
		return newOpenAIClient(cfg, logger), nil
	case "gemini":
		return newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI backend: %s", cfg.AI.Backend)
	}
}
