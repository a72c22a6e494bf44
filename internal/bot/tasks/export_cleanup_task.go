package tasks

import (
	"context"
	"fmt"
	"time"
)

// newExportCleanupTask deletes all but the newest configured number of CSV exports.
func newExportCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "export_cleanup")

	return func(ctx context.Context) error {
		startTime := time.Now()
		removed, err := deps.Exporter.Cleanup()
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Export cleanup failed", "error", err, "duration", duration)
			return fmt.Errorf("export cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Export cleanup completed", "removed", removed, "duration", duration)
		return nil
	}
}
