package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/brigade/internal/journal"
)

type countingGC struct {
	calls    atomic.Int32
	err      error
	pruneErr error
	cutoff   time.Time
}

func (c *countingGC) Prune(_ context.Context, cutoff time.Time) (int, error) {
	c.cutoff = cutoff
	return 0, c.pruneErr
}

func (c *countingGC) RunGC() error {
	c.calls.Add(1)
	return c.err
}

// manualClock only moves when set.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// prunedJournal counts what the loop prunes from a real journal.
type prunedJournal struct {
	*journal.Journal
	pruned []int
}

func (p *prunedJournal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := p.Journal.Prune(ctx, cutoff)
	p.pruned = append(p.pruned, n)
	return n, err
}

func TestTick_RunsGC(t *testing.T) {
	gc := &countingGC{}
	loop := NewLoop(NewEngine(nil, nil, discardLogger()), gc, DefaultConfig(), discardLogger())

	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if gc.calls.Load() != 1 {
		t.Errorf("RunGC calls = %d, want 1", gc.calls.Load())
	}
}

func TestTick_GCError(t *testing.T) {
	gc := &countingGC{err: errors.New("value log corrupted")}
	loop := NewLoop(nil, gc, DefaultConfig(), discardLogger())

	err := loop.Tick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "value log corrupted") {
		t.Errorf("Tick err = %v, want wrapped GC error", err)
	}
}

func TestTick_PruneError(t *testing.T) {
	gc := &countingGC{pruneErr: errors.New("iterator closed")}
	loop := NewLoop(nil, gc, DefaultConfig(), discardLogger())

	err := loop.Tick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "iterator closed") {
		t.Errorf("Tick err = %v, want wrapped prune error", err)
	}
	if gc.calls.Load() != 0 {
		t.Error("RunGC ran after a failed prune")
	}
}

func TestTick_PruneCutoffUsesEngineClock(t *testing.T) {
	now := t0.Add(3 * time.Hour)
	gc := &countingGC{}
	engine := NewEngine(nil, nil, discardLogger(), WithClock(fixedClock(now)))
	loop := NewLoop(engine, gc, Config{Retention: 30 * time.Minute}, discardLogger())

	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if want := now.Add(-30 * time.Minute); !gc.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", gc.cutoff, want)
	}
}

func TestTick_BoundsJournal(t *testing.T) {
	j, err := journal.Open("", discardLogger())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	pj := &prunedJournal{Journal: j}

	clock := &manualClock{now: t0.Add(10 * time.Minute)}
	f := newFixture(t, WithJournal(j), WithClock(clock))
	ctx := context.Background()
	submit(t, f.engine, mkTask("T1", false, 20, 0))
	for i := 0; i < 50; i++ {
		if _, err := f.engine.Complete(ctx, "ws_1", "T1"); err != nil {
			t.Fatalf("Complete #%d: %v", i, err)
		}
		if _, err := f.engine.Undo(ctx, "ws_1"); err != nil {
			t.Fatalf("Undo #%d: %v", i, err)
		}
	}

	loop := NewLoop(f.engine, pj, DefaultConfig(), discardLogger())

	// Inside the retention window nothing goes.
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	clock.Set(t0.Add(10*time.Minute + 2*time.Hour))
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	want := []int{0, 100, 0}
	if len(pj.pruned) != 3 || pj.pruned[0] != want[0] || pj.pruned[1] != want[1] || pj.pruned[2] != want[2] {
		t.Errorf("pruned per tick = %v, want %v", pj.pruned, want)
	}
}

func TestTick_LogsLaneDepth(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine := NewEngine(nil, nil, discardLogger())
	if _, err := engine.Submit(context.Background(), mkTask("T1", true, 10, 0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	loop := NewLoop(engine, nil, DefaultConfig(), logger)
	if err := loop.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "lane depth") || !strings.Contains(out, "workspace_id=ws_1") || !strings.Contains(out, "active_vip=1") {
		t.Errorf("log output missing lane depth: %s", out)
	}
}

func TestNewLoop_DefaultsInterval(t *testing.T) {
	loop := NewLoop(nil, nil, Config{}, discardLogger())
	if loop.config.Interval != DefaultConfig().Interval || loop.config.Retention != DefaultConfig().Retention {
		t.Errorf("config = %+v, want defaults", loop.config)
	}
}

// TestStart_StopsOnContextCancel verifies that Start returns when its context
// is cancelled.
func TestStart_StopsOnContextCancel(t *testing.T) {
	gc := &countingGC{}
	loop := NewLoop(NewEngine(nil, nil, discardLogger()), gc, Config{Interval: 10 * time.Millisecond}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Start(ctx)
	}()

	// Let the loop run a few ticks, then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return within 5 seconds after context cancellation")
	}
	if gc.calls.Load() == 0 {
		t.Error("RunGC never called")
	}
}

func TestStop(t *testing.T) {
	loop := NewLoop(nil, nil, Config{Interval: time.Hour}, discardLogger())

	done := make(chan error, 1)
	go func() {
		done <- loop.Start(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}

func TestStop_WithoutStart(t *testing.T) {
	loop := NewLoop(nil, nil, DefaultConfig(), discardLogger())

	done := make(chan struct{})
	go func() {
		loop.Stop()
		loop.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a loop that never started")
	}

	// A stopped loop that starts late exits at once.
	if err := loop.Start(context.Background()); err != nil {
		t.Errorf("Start after Stop = %v, want nil", err)
	}
}

func TestStart_Twice(t *testing.T) {
	loop := NewLoop(nil, nil, Config{Interval: time.Hour}, discardLogger())

	done := make(chan error, 1)
	go func() { done <- loop.Start(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopStarted) {
		t.Errorf("second Start = %v, want ErrLoopStarted", err)
	}
	loop.Stop()
	loop.Stop()
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}
