package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/zalobot/internal/bot/tasks"
	"github.com/edgard/zalobot/internal/config"
)

type fakeServer struct {
	err     error
	started atomic.Bool
}

func (f *fakeServer) Run(ctx context.Context) error {
	f.started.Store(true)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler(discardLogger(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return s
}

func TestBotRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := &fakeServer{}
	sched := newTestScheduler(t, &config.SchedulerConfig{}, nil)
	b := NewBot(discardLogger(), srv, sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if !srv.started.Load() {
		t.Error("server was never started")
	}
	if sched.running {
		t.Error("scheduler still running after Run returned")
	}
}

func TestBotRunReturnsServerError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("listen tcp: address already in use")
	sched := newTestScheduler(t, &config.SchedulerConfig{}, nil)
	b := NewBot(discardLogger(), &fakeServer{err: wantErr}, sched)

	err := b.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	if sched.running {
		t.Error("scheduler still running after server failure")
	}
}

func TestSchedulerRunsEnabledTasks(t *testing.T) {
	t.Parallel()

	var ran, skipped atomic.Int32
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"every_second": func(context.Context) error { ran.Add(1); return nil },
		"disabled":     func(context.Context) error { skipped.Add(1); return nil },
	}
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"every_second": {Enabled: true, Schedule: "* * * * * *"},
		"disabled":     {Enabled: false, Schedule: "* * * * * *"},
		"unregistered": {Enabled: true, Schedule: "* * * * * *"},
		"bad_schedule": {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap["bad_schedule"] = func(context.Context) error { return nil }

	s := newTestScheduler(t, cfg, taskMap)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	deadline := time.Now().Add(5 * time.Second)
	for ran.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if ran.Load() == 0 {
		t.Error("enabled task never ran")
	}
	if skipped.Load() != 0 {
		t.Error("disabled task ran")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
