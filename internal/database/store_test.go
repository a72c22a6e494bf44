package database

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func saveTestMessage(t *testing.T, s Store, groupID, author string, items ...string) *Message {
	t.Helper()

	raw := make([]RawJSON, len(items))
	for i, it := range items {
		raw[i] = RawJSON(it)
	}
	msg := &Message{
		GroupID:     groupID,
		AuthorID:    NullString(author),
		AuthorName:  NullString("Name " + author),
		MessageText: "2 thùng bia",
		ParsedData:  RawJSON(`{"items":[],"summary":{"Tổng":1}}`),
		AppID:       NullString("app-1"),
	}
	if err := s.SaveAnalysis(context.Background(), msg, raw); err != nil {
		t.Fatalf("SaveAnalysis() error = %v", err)
	}
	return msg
}

func TestSaveAnalysis(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	msg := saveTestMessage(t, s, "g1", "u1",
		`{"Tên hàng hóa":"Bia","Số lượng":2}`,
		`{"Tên hàng hóa":"Nước","Số lượng":3.5}`)

	if msg.ID == 0 {
		t.Fatal("expected message id to be set")
	}

	items, err := s.GetItemsByMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetItemsByMessage() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if string(items[0].ItemData) != `{"Tên hàng hóa":"Bia","Số lượng":2}` {
		t.Errorf("item data not stored verbatim: %s", items[0].ItemData)
	}
	if items[1].GroupID != "g1" {
		t.Errorf("item group = %q, want g1", items[1].GroupID)
	}

	groups, err := s.GetAllGroups(ctx)
	if err != nil {
		t.Fatalf("GetAllGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].GroupID != "g1" || groups[0].AppID.String != "app-1" {
		t.Errorf("unexpected groups: %+v", groups)
	}
}

func TestSaveAnalysisRollsBackOnItemFailure(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	msg := &Message{
		GroupID:     "g1",
		MessageText: "x",
		ParsedData:  RawJSON(`{}`),
	}
	// Empty item data violates NOT NULL.
	if err := s.SaveAnalysis(ctx, msg, []RawJSON{RawJSON(`{"a":1}`), nil}); err == nil {
		t.Fatal("expected error for invalid item")
	}

	messages, err := s.GetMessagesByGroup(ctx, "g1", 10, 0)
	if err != nil {
		t.Fatalf("GetMessagesByGroup() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected no messages after rollback, got %d", len(messages))
	}
}

func TestSaveAnalysisValidation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	tests := []struct {
		name string
		msg  *Message
	}{
		{name: "nil message", msg: nil},
		{name: "missing group", msg: &Message{MessageText: "x", ParsedData: RawJSON(`{}`)}},
		{name: "missing parsed data", msg: &Message{GroupID: "g", MessageText: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SaveAnalysis(context.Background(), tt.msg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUpsertGroupKeepsExistingValues(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertGroup(ctx, &Group{GroupID: "g1", GroupName: NullString("Kho"), OAID: NullString("oa-1")}); err != nil {
		t.Fatalf("UpsertGroup() error = %v", err)
	}
	if err := s.UpsertGroup(ctx, &Group{GroupID: "g1", AppID: NullString("app-9")}); err != nil {
		t.Fatalf("UpsertGroup() error = %v", err)
	}

	groups, err := s.GetAllGroups(ctx)
	if err != nil {
		t.Fatalf("GetAllGroups() error = %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.GroupName.String != "Kho" || g.OAID.String != "oa-1" || g.AppID.String != "app-9" {
		t.Errorf("unexpected merged group: %+v", g)
	}
}

func TestGetGroupData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first := saveTestMessage(t, s, "g1", "u1", `{"x":1}`)
	second := saveTestMessage(t, s, "g1", "u2", `{"x":2}`, `{"x":3}`)
	saveTestMessage(t, s, "other", "u3", `{"x":4}`)

	data, err := s.GetGroupData(ctx, "g1", 1000)
	if err != nil {
		t.Fatalf("GetGroupData() error = %v", err)
	}
	if len(data.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(data.Messages))
	}
	if data.Messages[0].ID != second.ID || data.Messages[1].ID != first.ID {
		t.Errorf("messages not newest first: %d, %d", data.Messages[0].ID, data.Messages[1].ID)
	}
	if len(data.Items) != 3 {
		t.Errorf("got %d items, want 3", len(data.Items))
	}

	limited, err := s.GetGroupData(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("GetGroupData() error = %v", err)
	}
	if len(limited.Messages) != 1 || len(limited.Items) != 2 {
		t.Errorf("limit not applied: %d messages, %d items", len(limited.Messages), len(limited.Items))
	}

	empty, err := s.GetGroupData(ctx, "missing", 1000)
	if err != nil {
		t.Fatalf("GetGroupData() error = %v", err)
	}
	if len(empty.Messages) != 0 || len(empty.Items) != 0 {
		t.Errorf("expected empty data, got %+v", empty)
	}
}

func TestGetGroupStats(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	saveTestMessage(t, s, "g1", "u1", `{"Số lượng":2}`, `{"quantity":3}`)
	saveTestMessage(t, s, "g1", "u1", `{"Số lượng":"5"}`)
	saveTestMessage(t, s, "g1", "u2")

	stats, err := s.GetGroupStats(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupStats() error = %v", err)
	}
	if stats.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", stats.TotalMessages)
	}
	if stats.UniqueAuthors != 2 {
		t.Errorf("UniqueAuthors = %d, want 2", stats.UniqueAuthors)
	}
	if stats.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", stats.TotalItems)
	}
	if stats.TotalQuantity != 10 {
		t.Errorf("TotalQuantity = %v, want 10", stats.TotalQuantity)
	}
	if !stats.FirstMessage.Valid || !stats.LastMessage.Valid {
		t.Errorf("expected first/last message timestamps, got %+v", stats)
	}
}

func TestGetMessagesByGroupPaging(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		saveTestMessage(t, s, "g1", "u1")
	}

	page, err := s.GetMessagesByGroup(ctx, "g1", 2, 4)
	if err != nil {
		t.Fatalf("GetMessagesByGroup() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("got %d messages on last page, want 1", len(page))
	}
	if page[0].CreatedAt.IsZero() || page[0].CreatedAt.After(time.Now().Add(time.Minute)) {
		t.Errorf("unexpected created_at %v", page[0].CreatedAt)
	}

	var parsed map[string]any
	if err := json.Unmarshal(page[0].ParsedData, &parsed); err != nil {
		t.Errorf("parsed_data is not valid json: %v", err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	stats, err := s.RunSQLMaintenance(context.Background())
	if err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}
	if stats.SizeBefore <= 0 || stats.SizeAfter <= 0 || stats.SizeAfter > stats.SizeBefore {
		t.Errorf("stats = %+v, want positive sizes that do not grow", stats)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RunSQLMaintenance(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMaintenanceStatsReclaimed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stats MaintenanceStats
		want  int64
	}{
		{MaintenanceStats{SizeBefore: 8192, SizeAfter: 4096}, 4096},
		{MaintenanceStats{SizeBefore: 4096, SizeAfter: 4096}, 0},
		{MaintenanceStats{SizeBefore: 4096, SizeAfter: 8192}, 0},
	}
	for _, tt := range tests {
		if got := tt.stats.Reclaimed(); got != tt.want {
			t.Errorf("%+v.Reclaimed() = %d, want %d", tt.stats, got, tt.want)
		}
	}
}

func TestRawJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RawJSON
		key  string
		want string
	}{
		{name: "object", in: RawJSON(`{"a":12345678901234567890}`), key: "a", want: "12345678901234567890"},
		{name: "scalar wrapped", in: RawJSON(`"text"`), key: "value", want: "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := tt.in.Object()
			if err != nil {
				t.Fatalf("Object() error = %v", err)
			}
			got, ok := obj[tt.key]
			if !ok {
				t.Fatalf("missing key %q in %v", tt.key, obj)
			}
			switch v := got.(type) {
			case json.Number:
				if v.String() != tt.want {
					t.Errorf("got %s, want %s", v, tt.want)
				}
			case string:
				if v != tt.want {
					t.Errorf("got %s, want %s", v, tt.want)
				}
			default:
				t.Errorf("unexpected type %T", got)
			}
		})
	}

	if _, err := RawJSON(`{bad`).Object(); err == nil {
		t.Error("expected decode error")
	}
}
