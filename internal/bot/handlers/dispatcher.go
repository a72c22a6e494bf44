package handlers

import (
	"context"
	"strings"

	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/logger"
	"github.com/edgard/zalobot/internal/zalo"
)

// Outcome is the terminal state of one dispatched event.
type Outcome int

const (
	OutcomeOtherEvent Outcome = iota
	OutcomeNoText
	OutcomeIgnored
	OutcomeMissingGroup
	OutcomeDuplicate
	OutcomeSaved
	OutcomeAnalysisFailed
	OutcomeStoreFailed
	OutcomeExportFailed
	OutcomeReplyFailed
	OutcomeAnswered
	OutcomeNoData
	OutcomeNoAnswer
	OutcomeQueryFailed
)

var outcomeNames = [...]string{
	OutcomeOtherEvent:     "other_event",
	OutcomeNoText:         "no_text",
	OutcomeIgnored:        "ignored",
	OutcomeMissingGroup:   "missing_group",
	OutcomeDuplicate:      "duplicate",
	OutcomeSaved:          "saved",
	OutcomeAnalysisFailed: "analysis_failed",
	OutcomeStoreFailed:    "store_failed",
	OutcomeExportFailed:   "export_failed",
	OutcomeReplyFailed:    "reply_failed",
	OutcomeAnswered:       "answered",
	OutcomeNoData:         "no_data",
	OutcomeNoAnswer:       "no_answer",
	OutcomeQueryFailed:    "query_failed",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// ParseCommand recognizes a command prefix at the start of text,
// case-insensitively. The prefix is stripped and the rest trimmed; empty
// content is not a command. Whitespace after the prefix is optional, so
// "/pbuy milk" is a save command with content "buy milk".
func ParseCommand(text string, prefixes ...string) (prefix, content string, ok bool) {
	trimmed := strings.TrimSpace(text)
	for _, p := range prefixes {
		if len(trimmed) < len(p) || !strings.EqualFold(trimmed[:len(p)], p) {
			continue
		}
		content = strings.TrimSpace(trimmed[len(p):])
		if content == "" {
			return "", "", false
		}
		return p, content, true
	}
	return "", "", false
}

// Dispatcher classifies webhook events and routes commands to their pipelines.
type Dispatcher struct {
	deps     HandlerDeps
	commands []RegisteredHandler
}

// NewDispatcher creates a Dispatcher over the registered commands.
func NewDispatcher(deps HandlerDeps, commands []RegisteredHandler) *Dispatcher {
	deps.Logger = deps.Logger.With("component", "dispatcher")
	return &Dispatcher{deps: deps, commands: commands}
}

// Dispatch handles one webhook event to completion. Pipeline failures are
// logged and reflected in the returned Outcome; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, ev zalo.Event) Outcome {
	log := d.deps.Logger
	eventType := ev.Type()

	if !zalo.IsMessageEventType(eventType) {
		if zalo.IsGroupLifecycleEventType(eventType) {
			log.InfoContext(ctx, "Group event received", "event_type", eventType, "group_id", ev.GroupID())
		} else {
			log.InfoContext(ctx, "Ignoring non-message event", "event_type", eventType)
		}
		return OutcomeOtherEvent
	}

	text := ev.Text()
	if strings.TrimSpace(text) == "" {
		log.DebugContext(ctx, "Message event without text", "event_type", eventType)
		return OutcomeNoText
	}

	prefixes := make([]string, len(d.commands))
	for i, c := range d.commands {
		prefixes[i] = c.Prefix
	}
	prefix, content, ok := ParseCommand(text, prefixes...)
	if !ok {
		log.DebugContext(ctx, "Ignoring non-command message", "text", logger.Truncate(text, 50))
		return OutcomeIgnored
	}

	groupID := ev.GroupID()
	if groupID == "" {
		err := errs.NewValidationError("command event has no group id", nil)
		log.WarnContext(ctx, "Dropping command", "event_type", eventType, "error", err)
		return OutcomeMissingGroup
	}

	if d.deps.Dedup != nil && d.deps.Dedup.CheckAndMark(ev) {
		log.InfoContext(ctx, "Duplicate message, skipping", "group_id", groupID, "message_id", ev.MessageID())
		return OutcomeDuplicate
	}

	for _, c := range d.commands {
		if c.Prefix != prefix {
			continue
		}
		log.InfoContext(ctx, "Dispatching command",
			"command", prefix, "group_id", groupID, "sender_id", ev.SenderID())
		outcome := c.Handler(ctx, Command{Prefix: prefix, Content: content, Event: ev})
		log.InfoContext(ctx, "Command finished", "command", prefix, "group_id", groupID, "outcome", outcome.String())
		return outcome
	}
	return OutcomeIgnored
}
