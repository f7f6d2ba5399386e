package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fixedSettings struct {
	focus  int
	breakM int
}

func (s fixedSettings) TimerDurations(ctx context.Context, userID string) (int, int, error) {
	return s.focus, s.breakM, nil
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []WorkReport
}

func (r *recordingReporter) ReportFocusWork(ctx context.Context, report WorkReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingReporter) snapshot() []WorkReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WorkReport(nil), r.reports...)
}

func newTestManager(t *testing.T, focus int, reporter WorkReporter) *Manager {
	t.Helper()

	m := NewManager(
		fixedSettings{focus: focus, breakM: 5},
		reporter,
		Config{TickInterval: time.Millisecond},
		zerolog.Nop(),
	)
	t.Cleanup(m.Shutdown)
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerDriverRunsToCompletion(t *testing.T) {
	reporter := &recordingReporter{}
	m := newTestManager(t, 1, reporter) // 60 ticks at 1ms

	ctx := context.Background()
	if _, err := m.Open(ctx, "u1", "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	snap, err := m.Start(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != StateRunning {
		t.Fatalf("expected running, got %s", snap.State)
	}

	waitFor(t, 5*time.Second, func() bool {
		s, err := m.Snapshot("u1", "t1")
		return err == nil && s.State == StateCompleted
	})

	reports := reporter.snapshot()
	if len(reports) != 1 {
		t.Fatalf("expected exactly one work report, got %d", len(reports))
	}
	if reports[0].Minutes != 1 || reports[0].TaskID != "t1" || reports[0].UserID != "u1" {
		t.Fatalf("unexpected report: %+v", reports[0])
	}
}

func TestManagerPauseHaltsTicks(t *testing.T) {
	reporter := &recordingReporter{}
	m := newTestManager(t, 25, reporter)

	ctx := context.Background()
	if _, err := m.Open(ctx, "u1", "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Start(ctx, "u1", "t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		s, _ := m.Snapshot("u1", "t1")
		return s.RemainingSeconds < s.TotalSeconds
	})

	snap, err := m.Pause(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	remaining := snap.RemainingSeconds

	// With the driver halted, remaining time must not move.
	time.Sleep(20 * time.Millisecond)
	snap, _ = m.Snapshot("u1", "t1")
	if snap.RemainingSeconds != remaining {
		t.Fatalf("paused timer kept ticking: %d -> %d", remaining, snap.RemainingSeconds)
	}

	// Resume preserves the remaining time.
	snap, err = m.Start(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if snap.RemainingSeconds != remaining {
		t.Fatalf("resume reset remaining: %d -> %d", remaining, snap.RemainingSeconds)
	}
}

func TestManagerIntentsWithoutOpenSession(t *testing.T) {
	m := newTestManager(t, 25, &recordingReporter{})

	if _, err := m.Start(context.Background(), "u1", "t1"); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := m.Pause(context.Background(), "u1", "t1"); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestManagerCloseDiscardsSession(t *testing.T) {
	m := newTestManager(t, 25, &recordingReporter{})

	ctx := context.Background()
	if _, err := m.Open(ctx, "u1", "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Start(ctx, "u1", "t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.Close("u1", "t1")

	if _, err := m.Snapshot("u1", "t1"); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession after close, got %v", err)
	}
}

func TestManagerUpdateDurationsOnlyAffectsIdleEngines(t *testing.T) {
	m := newTestManager(t, 25, &recordingReporter{})
	ctx := context.Background()

	if _, err := m.Open(ctx, "u1", "idle-task"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Open(ctx, "u1", "running-task"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Start(ctx, "u1", "running-task"); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.UpdateDurations("u1", 50, 10)

	idle, _ := m.Snapshot("u1", "idle-task")
	if idle.TotalSeconds != 3000 {
		t.Fatalf("idle engine did not pick up new duration, total=%d", idle.TotalSeconds)
	}

	running, _ := m.Snapshot("u1", "running-task")
	if running.TotalSeconds != 1500 {
		t.Fatalf("running engine was interrupted by duration change, total=%d", running.TotalSeconds)
	}
}

func TestManagerEnginesAreIndependent(t *testing.T) {
	m := newTestManager(t, 25, &recordingReporter{})
	ctx := context.Background()

	if _, err := m.Open(ctx, "u1", "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Open(ctx, "u2", "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := m.Start(ctx, "u1", "t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	other, err := m.Snapshot("u2", "t1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if other.State != StateIdle {
		t.Fatalf("unrelated engine changed state: %s", other.State)
	}
}
