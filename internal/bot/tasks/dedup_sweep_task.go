package tasks

import (
	"context"
)

// newDedupSweepTask removes expired entries from the deduplicator.
func newDedupSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "dedup_sweep")

	return func(ctx context.Context) error {
		removed := deps.Dedup.Sweep()
		log.DebugContext(ctx, "Deduplication sweep finished", "removed", removed)
		return nil
	}
}
