package database

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Group is a Zalo group chat the bot has seen a message from.
type Group struct {
	ID        int64          `db:"id"         json:"id"`
	GroupID   string         `db:"group_id"   json:"group_id"`
	GroupName sql.NullString `db:"group_name" json:"-"`
	OAID      sql.NullString `db:"oa_id"      json:"-"`
	AppID     sql.NullString `db:"app_id"     json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Message is a saved group message together with its analysis result.
type Message struct {
	ID              int64          `db:"id"`
	GroupID         string         `db:"group_id"`
	AuthorID        sql.NullString `db:"author_id"`
	AuthorName      sql.NullString `db:"author_name"`
	MessageText     string         `db:"message_text"`
	OriginalMessage sql.NullString `db:"original_message"`
	ParsedData      RawJSON        `db:"parsed_data"`
	MessageID       sql.NullString `db:"message_id"`
	UserIDByApp     sql.NullString `db:"user_id_by_app"`
	AppID           sql.NullString `db:"app_id"`
	OAID            sql.NullString `db:"oa_id"`
	CreatedAt       time.Time      `db:"created_at"`
}

// Item is one extracted goods entry belonging to a message.
type Item struct {
	ID        int64     `db:"id"`
	MessageID int64     `db:"message_id"`
	GroupID   string    `db:"group_id"`
	ItemData  RawJSON   `db:"item_data"`
	CreatedAt time.Time `db:"created_at"`
}

// GroupData is the recent history of one group used as query context.
type GroupData struct {
	Messages []Message
	Items    []Item
}

// GroupStats aggregates a group's stored data.
type GroupStats struct {
	TotalMessages int64          `db:"total_messages"`
	FirstMessage  sql.NullString `db:"first_message"`
	LastMessage   sql.NullString `db:"last_message"`
	UniqueAuthors int64          `db:"unique_authors"`
	TotalItems    int64          `db:"total_items"`
	TotalQuantity float64        `db:"total_quantity"`
}

// MaintenanceStats is the database size around one VACUUM run, in bytes.
type MaintenanceStats struct {
	SizeBefore int64
	SizeAfter  int64
}

// Reclaimed returns how many bytes the run freed.
func (m MaintenanceStats) Reclaimed() int64 {
	if m.SizeAfter >= m.SizeBefore {
		return 0
	}
	return m.SizeBefore - m.SizeAfter
}

// RawJSON is a JSON document stored verbatim in a TEXT column.
type RawJSON []byte

// Value implements driver.Valuer.
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

// Scan implements sql.Scanner.
func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawJSON(v)
	case []byte:
		*r = append((*r)[:0], v...)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", src)
	}
	return nil
}

// MarshalJSON emits the stored document as-is, or null when empty.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Decode unmarshals the document into a generic value, keeping numbers as json.Number.
func (r RawJSON) Decode() (any, error) {
	if len(r) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode stored json: %w", err)
	}
	return v, nil
}

// Object decodes the document as a JSON object. Non-object documents are
// returned under the "value" key.
func (r RawJSON) Object() (map[string]any, error) {
	v, err := r.Decode()
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case nil:
		return map[string]any{}, nil
	default:
		return map[string]any{"value": t}, nil
	}
}

// MustRawJSON marshals v, returning nil when v cannot be encoded.
func MustRawJSON(v any) RawJSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// NullString returns a valid NullString for non-empty s.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
