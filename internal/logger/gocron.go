package logger

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/zalobot/internal/errs"
)

type gocronLogger struct {
	log *slog.Logger
}

// NewGocronLogger adapts log to gocron's Logger interface. Scheduler errors
// passed under the "error" key are tagged with an error code.
//
//nolint:ireturn // gocron.WithLogger takes the interface
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	return &gocronLogger{log: log.With("source", "gocron")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, schedulerArgs(args)...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, schedulerArgs(args)...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, schedulerArgs(args)...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, schedulerArgs(args)...) }

func schedulerArgs(args []any) []any {
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out = append(out, args[i])
			break
		}
		key, val := args[i], args[i+1]
		if k, ok := key.(string); ok && k == "error" {
			if err, ok := val.(error); ok {
				val = categorizeSchedulerError(err)
			}
		}
		out = append(out, key, val)
	}
	return out
}

func categorizeSchedulerError(err error) error {
	switch {
	case errors.Is(err, gocron.ErrJobNotFound):
		return errs.NewValidationError("scheduled job not found", err)
	case strings.Contains(err.Error(), "shutdown"):
		return errs.NewConfigError("scheduler is shut down", err)
	default:
		return errs.NewConfigError("scheduler error", err)
	}
}
