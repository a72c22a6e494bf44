// Package logger provides structured logging for the bot.
// It builds slog loggers with configurable level and format and
// supplies the request-logging middleware for the HTTP server.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is read from inbound requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

const requestLoggerKey = "request_logger"

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Middleware creates a request-logging middleware for the HTTP server.
// Each request gets a request id (taken from X-Request-ID when present) and a
// child logger that handlers can fetch with FromContext.
func Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		logEntry := log.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Set(requestLoggerKey, logEntry)

		logEntry.DebugContext(c.Request.Context(), "Processing request", "remote_addr", c.ClientIP())

		c.Next()

		status := c.Writer.Status()
		attrs := []any{"status", status, "duration", time.Since(startTime)}
		switch {
		case status >= 500:
			logEntry.ErrorContext(c.Request.Context(), "Finished request", attrs...)
		case status >= 400:
			logEntry.WarnContext(c.Request.Context(), "Finished request", attrs...)
		default:
			logEntry.InfoContext(c.Request.Context(), "Finished request", attrs...)
		}
	}
}

// FromContext returns the request-scoped logger set by Middleware, or fallback.
func FromContext(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := c.Get(requestLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}

// Truncate shortens s to at most maxLen bytes for log previews.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
