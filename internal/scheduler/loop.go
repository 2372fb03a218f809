package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds maintenance loop configuration.
type Config struct {
	Interval time.Duration

	// Retention is how long committed journal entries are kept.
	Retention time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute, Retention: time.Hour}
}

// Maintainer is something the loop asks to reclaim space, such as the
// operation journal.
type Maintainer interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	RunGC() error
}

// ErrLoopStarted is returned by Start when the loop is already running or
// has run before.
var ErrLoopStarted = errors.New("maintenance loop already started")

// Loop periodically reports lane depths, prunes the journal and runs its
// garbage collection. It never touches scheduling state.
type Loop struct {
	engine *Engine
	gc     Maintainer
	config Config
	clock  Clock
	logger *slog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a maintenance loop. engine and gc may be nil. Journal
// retention is measured on the engine's clock, which also stamps entries.
func NewLoop(engine *Engine, gc Maintainer, cfg Config, logger *slog.Logger) *Loop {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	var clock Clock = realClock{}
	if engine != nil {
		clock = engine.clock
	}
	return &Loop{
		engine: engine,
		gc:     gc,
		config: cfg,
		clock:  clock,
		logger: logger.With("component", "maintenance"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the loop. Blocks until ctx is cancelled or Stop is called.
// A loop runs at most once.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrLoopStarted
	}
	defer close(l.doneCh)

	l.logger.Info("maintenance started", "interval", l.config.Interval, "retention", l.config.Retention)
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("maintenance stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("maintenance stopping (stop called)")
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop shuts the loop down and waits for the current tick to finish. It is
// safe to call more than once, and returns at once if Start never ran.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if !l.started.Load() {
		return nil
	}
	<-l.doneCh
	return nil
}

// Tick runs a single maintenance iteration.
func (l *Loop) Tick(ctx context.Context) error {
	if l.engine != nil && l.logger.Enabled(ctx, slog.LevelDebug) {
		for _, ws := range l.engine.Workspaces() {
			st := l.engine.Stats(ws)
			l.logger.Debug("lane depth",
				"workspace_id", ws,
				"active", st.Active,
				"active_vip", st.ActiveVIP,
				"completed", st.Completed,
			)
		}
	}
	if l.gc == nil {
		return nil
	}

	cutoff := l.clock.Now().Add(-l.config.Retention)
	n, err := l.gc.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("journal prune: %w", err)
	}
	if n > 0 {
		l.logger.Info("journal pruned", "entries", n, "cutoff", cutoff)
	}
	if err := l.gc.RunGC(); err != nil {
		return fmt.Errorf("journal gc: %w", err)
	}
	return nil
}
