// Package handlers contains the group command handlers (/p and /t), the
// dispatcher that routes webhook events to them, and reply formatting.
package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/gemini"
	"github.com/edgard/zalobot/internal/zalo"
)

// Sender delivers a text reply to a group.
type Sender interface {
	SendGroupMessage(ctx context.Context, groupID, text string) error
}

// Exporter renders an analysis payload to a CSV file and links to it.
type Exporter interface {
	Export(payload any, groupID, messageID string) (string, error)
	FileURL(path string) (string, error)
	ViewURL(path string) (string, error)
}

// Deduplicator reports whether an event was already handled, marking it if not.
type Deduplicator interface {
	CheckAndMark(ev zalo.Event) bool
}

// HandlerDeps provides dependencies for group command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	GeminiClient gemini.Client
	Sender       Sender
	Exporter     Exporter
	Dedup        Deduplicator
}
