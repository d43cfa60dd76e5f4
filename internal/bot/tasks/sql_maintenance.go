package tasks

import (
	"context"
	"fmt"
)

// newSQLMaintenanceTask returns a task that runs routine SQLite
// maintenance through the store.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	logger := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		result, err := deps.Store.RunSQLMaintenance(ctx)
		if err != nil {
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
		logger.InfoContext(ctx, "SQL maintenance finished", "result", result)
		return nil
	}
}
