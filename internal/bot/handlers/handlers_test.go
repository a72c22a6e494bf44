package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/dedup"
	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/export"
	"github.com/edgard/zalobot/internal/gemini"
	"github.com/edgard/zalobot/internal/zalo"
)

type fakeAnalyzer struct {
	analyze      func(ctx context.Context, text string) (*gemini.Analysis, error)
	answer       func(ctx context.Context, data any, question string) (string, error)
	analyzeCalls atomic.Int32
	answerCalls  atomic.Int32
}

func (f *fakeAnalyzer) AnalyzeMessage(ctx context.Context, text string) (*gemini.Analysis, error) {
	f.analyzeCalls.Add(1)
	return f.analyze(ctx, text)
}

func (f *fakeAnalyzer) AnswerQuestion(ctx context.Context, data any, question string) (string, error) {
	f.answerCalls.Add(1)
	return f.answer(ctx, data, question)
}

type sentMessage struct {
	groupID string
	text    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendGroupMessage(_ context.Context, groupID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{groupID: groupID, text: text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type testEnv struct {
	deps     HandlerDeps
	store    database.Store
	analyzer *fakeAnalyzer
	sender   *fakeSender
	exportTo string
}

func newTestEnv(t *testing.T, analyzer *fakeAnalyzer) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "bot.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, logger)
	sender := &fakeSender{}
	exportDir := filepath.Join(dir, "exports")

	cfg := &config.Config{Messages: config.DefaultMessages}
	deps := HandlerDeps{
		Logger:       logger,
		Config:       cfg,
		Store:        store,
		GeminiClient: analyzer,
		Sender:       sender,
		Exporter:     export.New(exportDir, "https://bot.example.com", 10, logger),
		Dedup:        dedup.New(10*time.Minute, logger),
	}
	return &testEnv{deps: deps, store: store, analyzer: analyzer, sender: sender, exportTo: exportDir}
}

func (e *testEnv) dispatcher() *Dispatcher {
	return NewDispatcher(e.deps, RegisterAllCommands(e.deps))
}

func groupEvent(t *testing.T, groupID, msgID, text string) zalo.Event {
	t.Helper()
	body := fmt.Sprintf(`{
		"event_name": "user_send_group_text",
		"app_id": "app-1",
		"oa_id": "oa-1",
		"timestamp": "1700000000000",
		"sender": {"id": "u1", "name": "Lan"},
		"recipient": {"id": %q},
		"message": {"msg_id": %q, "text": %q}
	}`, groupID, msgID, text)
	ev, err := zalo.ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return ev
}

func analysisOf(t *testing.T, s string) *gemini.Analysis {
	t.Helper()
	a, err := gemini.ParseAnalysis(s)
	if err != nil {
		t.Fatalf("ParseAnalysis() error = %v", err)
	}
	return a
}

const beerAnalysis = `{"items":[{"Tên hàng hóa":"Bia","Số lượng":2,"Đơn giá":15000}],"summary":{"Tổng số lượng":2},"metadata":{}}`

func TestSaveCommandStoresExportsAndReplies(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{analyze: func(_ context.Context, text string) (*gemini.Analysis, error) {
		if text != "2 thùng bia" {
			t.Errorf("analyzed text = %q, want prefix stripped", text)
		}
		return analysisOf(t, beerAnalysis), nil
	}}
	env := newTestEnv(t, analyzer)

	outcome := env.dispatcher().Dispatch(context.Background(), groupEvent(t, "g1", "m1", "/p 2 thùng bia"))
	if outcome != OutcomeSaved {
		t.Fatalf("Dispatch() = %v, want %v", outcome, OutcomeSaved)
	}

	msgs, err := env.store.GetMessagesByGroup(context.Background(), "g1", 10, 0)
	if err != nil {
		t.Fatalf("GetMessagesByGroup() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(msgs))
	}
	if msgs[0].MessageText != "2 thùng bia" || msgs[0].OriginalMessage.String != "/p 2 thùng bia" {
		t.Errorf("stored texts = %q / %q", msgs[0].MessageText, msgs[0].OriginalMessage.String)
	}
	if msgs[0].MessageID.String != "m1" || msgs[0].AuthorName.String != "Lan" {
		t.Errorf("stored event fields = %+v", msgs[0])
	}
	items, err := env.store.GetItemsByMessage(context.Background(), msgs[0].ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("GetItemsByMessage() = %d items, %v", len(items), err)
	}

	entries, err := os.ReadDir(env.exportTo)
	if err != nil || len(entries) != 1 {
		t.Fatalf("export dir entries = %d, %v", len(entries), err)
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "export_g1_m1_") {
		t.Errorf("export file name = %q", name)
	}

	sent := env.sender.messages()
	if len(sent) != 1 || sent[0].groupID != "g1" {
		t.Fatalf("sent = %+v, want one reply to g1", sent)
	}
	reply := sent[0].text
	for _, want := range []string{
		"1. Số lượng: 2 | Tên hàng hóa: Bia | Đơn giá: 15.000đ",
		"- Tổng số lượng: 2",
		"📎 Tải file CSV: https://bot.example.com/exports/" + name,
		"👀 Xem trước: https://bot.example.com/exports/view/" + name,
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestDuplicateDeliveryProcessedOnce(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string) (*gemini.Analysis, error) {
		return analysisOf(t, beerAnalysis), nil
	}}
	env := newTestEnv(t, analyzer)
	d := env.dispatcher()
	ev := groupEvent(t, "g1", "m-dup", "/p 2 thùng bia")

	if got := d.Dispatch(context.Background(), ev); got != OutcomeSaved {
		t.Fatalf("first Dispatch() = %v", got)
	}
	if got := d.Dispatch(context.Background(), ev); got != OutcomeDuplicate {
		t.Fatalf("second Dispatch() = %v, want %v", got, OutcomeDuplicate)
	}

	if n := analyzer.analyzeCalls.Load(); n != 1 {
		t.Errorf("analyzer calls = %d, want 1", n)
	}
	if n := len(env.sender.messages()); n != 1 {
		t.Errorf("replies = %d, want 1", n)
	}
	msgs, _ := env.store.GetMessagesByGroup(context.Background(), "g1", 10, 0)
	if len(msgs) != 1 {
		t.Errorf("stored messages = %d, want 1", len(msgs))
	}
}

func TestAnalyzerTimeoutSavesNothing(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string) (*gemini.Analysis, error) {
		return nil, errs.NewAnalysisError("gemini request timed out", context.DeadlineExceeded)
	}}
	env := newTestEnv(t, analyzer)

	if got := env.dispatcher().Dispatch(context.Background(), groupEvent(t, "g1", "m1", "/p 2 thùng bia")); got != OutcomeAnalysisFailed {
		t.Fatalf("Dispatch() = %v, want %v", got, OutcomeAnalysisFailed)
	}

	msgs, err := env.store.GetMessagesByGroup(context.Background(), "g1", 10, 0)
	if err != nil {
		t.Fatalf("GetMessagesByGroup() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("stored messages = %d, want 0", len(msgs))
	}
	if n := len(env.sender.messages()); n != 0 {
		t.Errorf("replies = %d, want 0", n)
	}
}

func TestSaveCommandExportFailureSendsNoReply(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string) (*gemini.Analysis, error) {
		return analysisOf(t, beerAnalysis), nil
	}}
	env := newTestEnv(t, analyzer)
	env.deps.Exporter = export.New(env.exportTo, "", 10, nil)

	if got := env.dispatcher().Dispatch(context.Background(), groupEvent(t, "g1", "m1", "/p 2 thùng bia")); got != OutcomeExportFailed {
		t.Fatalf("Dispatch() = %v, want %v", got, OutcomeExportFailed)
	}
	if n := len(env.sender.messages()); n != 0 {
		t.Errorf("replies = %d, want 0", n)
	}
}

func TestQueryEmptyGroupRepliesNoData(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{answer: func(context.Context, any, string) (string, error) {
		return "should not be called", nil
	}}
	env := newTestEnv(t, analyzer)

	if got := env.dispatcher().Dispatch(context.Background(), groupEvent(t, "empty", "q1", "/t có bao nhiêu bia?")); got != OutcomeNoData {
		t.Fatalf("Dispatch() = %v, want %v", got, OutcomeNoData)
	}
	if n := analyzer.answerCalls.Load(); n != 0 {
		t.Errorf("analyzer calls = %d, want 0", n)
	}
	sent := env.sender.messages()
	if len(sent) != 1 || sent[0].text != config.DefaultMessages.NoData {
		t.Errorf("sent = %+v, want the no-data reply", sent)
	}
}

func TestQueryAnswersFromGroupData(t *testing.T) {
	t.Parallel()

	var gotData map[string]any
	analyzer := &fakeAnalyzer{
		analyze: func(context.Context, string) (*gemini.Analysis, error) {
			return analysisOf(t, beerAnalysis), nil
		},
		answer: func(_ context.Context, data any, question string) (string, error) {
			gotData, _ = data.(map[string]any)
			if question != "có bao nhiêu bia?" {
				t.Errorf("question = %q", question)
			}
			return "  Có 2 thùng bia.  ", nil
		},
	}
	env := newTestEnv(t, analyzer)
	d := env.dispatcher()

	d.Dispatch(context.Background(), groupEvent(t, "g1", "m1", "/p 2 thùng bia"))
	if got := d.Dispatch(context.Background(), groupEvent(t, "g1", "q1", "/T có bao nhiêu bia?")); got != OutcomeAnswered {
		t.Fatalf("Dispatch() = %v, want %v", got, OutcomeAnswered)
	}

	if gotData["total_messages"] != 1 || gotData["total_items"] != 1 {
		t.Errorf("query context totals = %v / %v", gotData["total_messages"], gotData["total_items"])
	}
	items, _ := gotData["items"].([]map[string]any)
	if len(items) != 1 || items[0]["Tên hàng hóa"] != "Bia" || items[0]["message_id"] == nil {
		t.Errorf("query context items = %+v", items)
	}

	sent := env.sender.messages()
	if len(sent) != 2 || sent[1].text != "  Có 2 thùng bia.  " {
		t.Errorf("sent = %+v, want verbatim answer", sent)
	}
}

func TestQueryOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answer  func(context.Context, any, string) (string, error)
		want    Outcome
		replies []string
	}{
		{
			name:   "blank answer is silent",
			answer: func(context.Context, any, string) (string, error) { return " \n ", nil },
			want:   OutcomeNoAnswer,
		},
		{
			name: "analyzer failure sends apology",
			answer: func(context.Context, any, string) (string, error) {
				return "", errs.NewAnalysisError("boom", nil)
			},
			want:    OutcomeQueryFailed,
			replies: []string{config.DefaultMessages.QueryError},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			analyzer := &fakeAnalyzer{
				analyze: func(context.Context, string) (*gemini.Analysis, error) {
					return analysisOf(t, beerAnalysis), nil
				},
				answer: tt.answer,
			}
			env := newTestEnv(t, analyzer)
			if _, _, err := AnalyzeAndStore(context.Background(), env.deps, Command{
				Prefix: SavePrefix, Content: "2 thùng bia", Event: groupEvent(t, "g1", "m1", "/p 2 thùng bia"),
			}); err != nil {
				t.Fatalf("AnalyzeAndStore() error = %v", err)
			}

			got := NewQueryHandler(env.deps)(context.Background(), Command{
				Prefix: QueryPrefix, Content: "hỏi", Event: groupEvent(t, "g1", "q1", "/t hỏi"),
			})
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			sent := env.sender.messages()
			if len(sent) != len(tt.replies) {
				t.Fatalf("sent = %+v, want %v", sent, tt.replies)
			}
			for i, r := range tt.replies {
				if sent[i].text != r {
					t.Errorf("reply %d = %q, want %q", i, sent[i].text, r)
				}
			}
		})
	}
}

func TestReplyFailureIsReported(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{analyze: func(context.Context, string) (*gemini.Analysis, error) {
		return analysisOf(t, beerAnalysis), nil
	}}
	env := newTestEnv(t, analyzer)
	env.sender.err = errs.NewNetworkError("send failed", errors.New("connection reset"))

	if got := env.dispatcher().Dispatch(context.Background(), groupEvent(t, "g1", "m1", "/p 2 thùng bia")); got != OutcomeReplyFailed {
		t.Fatalf("Dispatch() = %v, want %v", got, OutcomeReplyFailed)
	}
	msgs, _ := env.store.GetMessagesByGroup(context.Background(), "g1", 10, 0)
	if len(msgs) != 1 {
		t.Errorf("stored messages = %d, want 1", len(msgs))
	}
}
