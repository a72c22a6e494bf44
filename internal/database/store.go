package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveAnalysis upserts the message's group, inserts the message and one item
	// row per entry of items, all in a single transaction. On success message.ID
	// and message.CreatedAt are populated.
	SaveAnalysis(ctx context.Context, message *Message, items []RawJSON) error

	// UpsertGroup creates the group or fills in its non-null fields.
	UpsertGroup(ctx context.Context, group *Group) error

	// GetAllGroups lists groups, most recently updated first.
	GetAllGroups(ctx context.Context) ([]Group, error)

	// GetMessagesByGroup pages through a group's messages, newest first.
	GetMessagesByGroup(ctx context.Context, groupID string, limit, offset int) ([]Message, error)

	// GetItemsByMessage returns the items extracted from one message.
	GetItemsByMessage(ctx context.Context, messageID int64) ([]Item, error)

	// GetGroupData returns the newest limit messages of a group and their items.
	GetGroupData(ctx context.Context, groupID string, limit int) (*GroupData, error)

	// GetGroupStats aggregates counts and quantities for a group.
	GetGroupStats(ctx context.Context, groupID string) (*GroupStats, error)

	// RunSQLMaintenance compacts the database file and reports its size
	// before and after.
	RunSQLMaintenance(ctx context.Context) (*MaintenanceStats, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const upsertGroupQuery = `
	INSERT INTO groups (group_id, group_name, oa_id, app_id, created_at, updated_at)
	VALUES (:group_id, :group_name, :oa_id, :app_id, :created_at, :updated_at)
	ON CONFLICT(group_id) DO UPDATE SET
		group_name = COALESCE(excluded.group_name, groups.group_name),
		oa_id      = COALESCE(excluded.oa_id, groups.oa_id),
		app_id     = COALESCE(excluded.app_id, groups.app_id),
		updated_at = CASE
			WHEN excluded.group_name IS NULL AND excluded.oa_id IS NULL AND excluded.app_id IS NULL
			THEN groups.updated_at
			ELSE excluded.updated_at
		END;
`

// SaveAnalysis writes the group, message and items atomically.
func (s *sqlxStore) SaveAnalysis(ctx context.Context, message *Message, items []RawJSON) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.GroupID == "" {
		return fmt.Errorf("message must have a group_id")
	}
	if len(message.ParsedData) == 0 {
		return fmt.Errorf("message must have parsed data")
	}

	now := s.now()
	message.CreatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving analysis",
			"group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	group := &Group{
		GroupID:   message.GroupID,
		OAID:      message.OAID,
		AppID:     message.AppID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := tx.NamedExecContext(ctx, upsertGroupQuery, group); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting group", "group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to upsert group %s: %w", message.GroupID, err)
	}

	result, err := tx.NamedExecContext(ctx, `
		INSERT INTO messages (
			group_id, author_id, author_name, message_text, original_message, parsed_data,
			message_id, user_id_by_app, app_id, oa_id, created_at
		) VALUES (
			:group_id, :author_id, :author_name, :message_text, :original_message, :parsed_data,
			:message_id, :user_id_by_app, :app_id, :oa_id, :created_at
		);
	`, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to save message for group %s: %w", message.GroupID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted message id: %w", err)
	}

	for i, data := range items {
		item := &Item{MessageID: id, GroupID: message.GroupID, ItemData: data, CreatedAt: now}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO items (message_id, group_id, item_data, created_at)
			VALUES (:message_id, :group_id, :item_data, :created_at);
		`, item); err != nil {
			s.logger.ErrorContext(ctx, "Error saving item", "message_id", id, "index", i, "error", err)
			return fmt.Errorf("failed to save item %d of message %d: %w", i, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	message.ID = id
	s.logger.DebugContext(ctx, "Analysis saved successfully",
		"group_id", message.GroupID, "message_id", id, "items", len(items))
	return nil
}

func (s *sqlxStore) UpsertGroup(ctx context.Context, group *Group) error {
	if group == nil || group.GroupID == "" {
		return fmt.Errorf("group must have a group_id")
	}

	now := s.now()
	group.CreatedAt = now
	group.UpdatedAt = now

	if _, err := s.db.NamedExecContext(ctx, upsertGroupQuery, group); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting group", "group_id", group.GroupID, "error", err)
		return fmt.Errorf("failed to upsert group %s: %w", group.GroupID, err)
	}
	return nil
}

func (s *sqlxStore) GetAllGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := s.db.SelectContext(ctx, &groups, `
		SELECT id, group_id, group_name, oa_id, app_id, created_at, updated_at
		FROM groups
		ORDER BY updated_at DESC, id DESC;
	`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting groups", "error", err)
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	return groups, nil
}

const messageColumns = `id, group_id, author_id, author_name, message_text, original_message,
	parsed_data, message_id, user_id_by_app, app_id, oa_id, created_at`

func (s *sqlxStore) GetMessagesByGroup(ctx context.Context, groupID string, limit, offset int) ([]Message, error) {
	if groupID == "" {
		return nil, fmt.Errorf("group_id cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var messages []Message
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE group_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?;`
	if err := s.db.SelectContext(ctx, &messages, query, groupID, limit, offset); err != nil {
		s.logger.ErrorContext(ctx, "Error getting messages", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to get messages for group %s: %w", groupID, err)
	}
	return messages, nil
}

func (s *sqlxStore) GetItemsByMessage(ctx context.Context, messageID int64) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, message_id, group_id, item_data, created_at
		FROM items
		WHERE message_id = ?
		ORDER BY id ASC;
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for message %d: %w", messageID, err)
	}
	return items, nil
}

func (s *sqlxStore) GetGroupData(ctx context.Context, groupID string, limit int) (*GroupData, error) {
	messages, err := s.GetMessagesByGroup(ctx, groupID, limit, 0)
	if err != nil {
		return nil, err
	}

	data := &GroupData{Messages: messages}
	if len(messages) == 0 {
		return data, nil
	}

	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	query, args, err := sqlx.In(`
		SELECT id, message_id, group_id, item_data, created_at
		FROM items
		WHERE message_id IN (?)
		ORDER BY message_id DESC, id ASC;
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build items query: %w", err)
	}
	if err := s.db.SelectContext(ctx, &data.Items, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error getting items", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to get items for group %s: %w", groupID, err)
	}

	s.logger.DebugContext(ctx, "Fetched group data",
		"group_id", groupID, "messages", len(data.Messages), "items", len(data.Items))
	return data, nil
}

func (s *sqlxStore) GetGroupStats(ctx context.Context, groupID string) (*GroupStats, error) {
	if groupID == "" {
		return nil, fmt.Errorf("group_id cannot be empty")
	}

	var stats GroupStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM messages WHERE group_id = ?) AS total_messages,
			(SELECT MIN(created_at) FROM messages WHERE group_id = ?) AS first_message,
			(SELECT MAX(created_at) FROM messages WHERE group_id = ?) AS last_message,
			(SELECT COUNT(DISTINCT author_id) FROM messages WHERE group_id = ?) AS unique_authors,
			(SELECT COUNT(*) FROM items WHERE group_id = ?) AS total_items,
			(SELECT COALESCE(SUM(CAST(COALESCE(
				json_extract(item_data, '$."Số lượng"'),
				json_extract(item_data, '$.quantity'),
				0) AS REAL)), 0)
			 FROM items WHERE group_id = ? AND json_valid(item_data)) AS total_quantity;
	`, groupID, groupID, groupID, groupID, groupID, groupID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting group stats", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to get stats for group %s: %w", groupID, err)
	}
	return &stats, nil
}

// RunSQLMaintenance runs VACUUM, which SQLite requires outside a transaction,
// then PRAGMA optimize.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) (*MaintenanceStats, error) {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return nil, ctx.Err()
	}

	before, err := s.fileSize(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...", "size_bytes", before)
	start := time.Now()

	_, err = s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return nil, fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return nil, fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	after, err := s.fileSize(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully",
		"duration_ms", time.Since(start).Milliseconds(), "size_before", before, "size_after", after)
	return &MaintenanceStats{SizeBefore: before, SizeAfter: after}, nil
}

// fileSize returns page_count * page_size.
func (s *sqlxStore) fileSize(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := s.db.GetContext(ctx, &pages, "PRAGMA page_count;"); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := s.db.GetContext(ctx, &pageSize, "PRAGMA page_size;"); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return pages * pageSize, nil
}
