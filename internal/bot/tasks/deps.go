package tasks

import (
	"log/slog"

	"github.com/ryanhideo/tablescout/internal/database"
)

// TaskDeps holds the dependencies scheduled tasks may use.
type TaskDeps struct {
	Store  database.Store
	Logger *slog.Logger
}
