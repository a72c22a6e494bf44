package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/errs"
)

// QueryHistoryLimit bounds how many recent messages are sent as query context.
const QueryHistoryLimit = 1000

// ErrNoGroupData is returned by AnswerGroupQuestion when the group has no saved messages.
var ErrNoGroupData = errors.New("no saved data for group")

// NewQueryHandler returns the pipeline for the /t command.
func NewQueryHandler(deps HandlerDeps) CommandFunc {
	return queryHandler{deps}.Handle
}

type queryHandler struct {
	deps HandlerDeps
}

// Handle answers a question over the group's saved data and relays the
// answer verbatim. A group with no data gets the fixed "no data" reply.
func (h queryHandler) Handle(ctx context.Context, cmd Command) Outcome {
	log := h.deps.Logger.With("handler", "query")
	groupID := cmd.GroupID()
	msgs := h.deps.Config.Messages

	answer, err := AnswerGroupQuestion(ctx, h.deps, groupID, cmd.Content)
	switch {
	case errors.Is(err, ErrNoGroupData):
		log.InfoContext(ctx, "No saved data for group", "group_id", groupID)
		return h.reply(ctx, log, groupID, msgs.NoData, OutcomeNoData)
	case err != nil:
		log.ErrorContext(ctx, "Query failed", "group_id", groupID, "error", err)
		return h.reply(ctx, log, groupID, msgs.QueryError, OutcomeQueryFailed)
	}

	if strings.TrimSpace(answer) == "" {
		log.WarnContext(ctx, "Analyzer returned an empty answer, no reply sent", "group_id", groupID)
		return OutcomeNoAnswer
	}
	return h.reply(ctx, log, groupID, answer, OutcomeAnswered)
}

func (h queryHandler) reply(ctx context.Context, log *slog.Logger, groupID, text string, ok Outcome) Outcome {
	if err := h.deps.Sender.SendGroupMessage(ctx, groupID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send query reply", "group_id", groupID, "error", err)
		return OutcomeReplyFailed
	}
	return ok
}

// AnswerGroupQuestion loads the group's recent history and asks the analyzer
// the question over it. It returns ErrNoGroupData without calling the
// analyzer when nothing has been saved for the group.
func AnswerGroupQuestion(ctx context.Context, deps HandlerDeps, groupID, question string) (string, error) {
	if groupID == "" || strings.TrimSpace(question) == "" {
		return "", errs.NewValidationError("group_id and question are required", nil)
	}

	data, err := deps.Store.GetGroupData(ctx, groupID, QueryHistoryLimit)
	if err != nil {
		return "", errs.NewDatabaseError("failed to load group data", err)
	}
	if data == nil || len(data.Messages) == 0 {
		return "", ErrNoGroupData
	}

	deps.Logger.DebugContext(ctx, "Querying group data",
		"group_id", groupID, "messages", len(data.Messages), "items", len(data.Items))

	return deps.GeminiClient.AnswerQuestion(ctx, BuildQueryContext(data), question)
}

// BuildQueryContext shapes stored group data into the document sent to the analyzer.
func BuildQueryContext(data *database.GroupData) map[string]any {
	messages := make([]map[string]any, 0, len(data.Messages))
	for _, m := range data.Messages {
		parsed, err := m.ParsedData.Decode()
		if err != nil {
			parsed = nil
		}
		var author any
		if m.AuthorName.Valid {
			author = m.AuthorName.String
		}
		messages = append(messages, map[string]any{
			"id":          m.ID,
			"author":      author,
			"date":        m.CreatedAt.UTC().Format(time.RFC3339),
			"parsed_data": parsed,
		})
	}

	items := make([]map[string]any, 0, len(data.Items))
	for _, it := range data.Items {
		fields, err := it.ItemData.Object()
		if err != nil {
			fields = map[string]any{}
		}
		fields["message_id"] = it.MessageID
		fields["created_at"] = it.CreatedAt.UTC().Format(time.RFC3339)
		items = append(items, fields)
	}

	return map[string]any{
		"total_messages": len(data.Messages),
		"total_items":    len(data.Items),
		"messages":       messages,
		"items":          items,
	}
}
