package handlers

import (
	"context"
	"strconv"

	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/gemini"
)

// NewSaveHandler returns the pipeline for the /p command.
func NewSaveHandler(deps HandlerDeps) CommandFunc {
	return saveHandler{deps}.Handle
}

type saveHandler struct {
	deps HandlerDeps
}

// Handle analyzes the message, stores it with its items, exports the result
// to CSV and replies with a summary and the file links. Analysis and export
// failures end the pipeline without a reply.
func (h saveHandler) Handle(ctx context.Context, cmd Command) Outcome {
	log := h.deps.Logger.With("handler", "save")
	groupID := cmd.GroupID()

	analysis, msg, err := AnalyzeAndStore(ctx, h.deps, cmd)
	if err != nil {
		if errs.Is(err, errs.CodeAnalysis) {
			log.ErrorContext(ctx, "Message analysis failed, no reply sent", "group_id", groupID, "error", err)
			return OutcomeAnalysisFailed
		}
		log.ErrorContext(ctx, "Failed to save analysis, no reply sent", "group_id", groupID, "error", err)
		return OutcomeStoreFailed
	}

	exportName := cmd.Event.MessageID()
	if exportName == "" {
		exportName = strconv.FormatInt(msg.ID, 10)
	}
	path, err := h.deps.Exporter.Export(analysis.Data, groupID, exportName)
	if err != nil {
		log.ErrorContext(ctx, "CSV export failed, no reply sent", "group_id", groupID, "message_id", msg.ID, "error", err)
		return OutcomeExportFailed
	}
	fileURL, err := h.deps.Exporter.FileURL(path)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build export link, no reply sent", "group_id", groupID, "error", err)
		return OutcomeExportFailed
	}
	viewURL, err := h.deps.Exporter.ViewURL(path)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build preview link, no reply sent", "group_id", groupID, "error", err)
		return OutcomeExportFailed
	}

	msgs := h.deps.Config.Messages
	reply := FormatAnalysisSummary(analysis, msgs) +
		"\n\n" + msgs.FileLink + " " + fileURL +
		"\n" + msgs.ViewLink + " " + viewURL

	if err := h.deps.Sender.SendGroupMessage(ctx, groupID, reply); err != nil {
		log.ErrorContext(ctx, "Failed to send save reply", "group_id", groupID, "error", err)
		return OutcomeReplyFailed
	}

	log.InfoContext(ctx, "Message analyzed and saved",
		"group_id", groupID, "message_id", msg.ID, "items", len(analysis.Items()), "export", path)
	return OutcomeSaved
}

// AnalyzeAndStore runs the analyzer over cmd.Content and persists the message
// with its items in one transaction. Nothing is written when analysis fails.
func AnalyzeAndStore(ctx context.Context, deps HandlerDeps, cmd Command) (*gemini.Analysis, *database.Message, error) {
	analysis, err := deps.GeminiClient.AnalyzeMessage(ctx, cmd.Content)
	if err != nil {
		return nil, nil, err
	}

	itemsJSON, err := analysis.ItemsJSON()
	if err != nil {
		return nil, nil, errs.NewAnalysisError("analysis items could not be encoded", err)
	}
	items := make([]database.RawJSON, len(itemsJSON))
	for i, b := range itemsJSON {
		items[i] = database.RawJSON(b)
	}

	ev := cmd.Event
	original := ev.Text()
	if original == "" {
		original = cmd.Content
	}
	msg := &database.Message{
		GroupID:         cmd.GroupID(),
		AuthorID:        database.NullString(ev.SenderID()),
		AuthorName:      database.NullString(ev.SenderName()),
		MessageText:     cmd.Content,
		OriginalMessage: database.NullString(original),
		ParsedData:      database.RawJSON(analysis.Raw),
		MessageID:       database.NullString(ev.MessageID()),
		UserIDByApp:     database.NullString(ev.UserIDByApp()),
		AppID:           database.NullString(ev.AppID()),
		OAID:            database.NullString(ev.OAID()),
	}
	if err := deps.Store.SaveAnalysis(ctx, msg, items); err != nil {
		return nil, nil, errs.NewDatabaseError("failed to save analysis", err)
	}
	return analysis, msg, nil
}
