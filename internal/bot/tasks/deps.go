// Package tasks implements the bot's scheduled maintenance tasks.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/database"
)

// Sweeper drops expired deduplication entries.
type Sweeper interface {
	Sweep() int
}

// ExportCleaner prunes old CSV exports.
type ExportCleaner interface {
	Cleanup() (int, error)
}

// TokenSource yields a valid OA access token, refreshing it when needed.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Config   *config.Config
	Dedup    Sweeper
	Exporter ExportCleaner
	Tokens   TokenSource
}
