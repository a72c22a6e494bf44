package tasks

import (
	"context"
	"fmt"
)

// newTokenRefreshTask refreshes the OA access token ahead of its expiry.
func newTokenRefreshTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "token_refresh")

	return func(ctx context.Context) error {
		if _, err := deps.Tokens.AccessToken(ctx); err != nil {
			log.WarnContext(ctx, "Could not obtain a valid access token", "error", err)
			return fmt.Errorf("token refresh failed: %w", err)
		}
		log.DebugContext(ctx, "Access token is valid")
		return nil
	}
}
