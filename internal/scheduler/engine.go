package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/brigade/internal/journal"
	"github.com/me/brigade/pkg/model"
)

// Journal records operations durably around the in-memory state changes.
type Journal interface {
	Begin(ctx context.Context, entry journal.Entry) (string, error)
	Commit(ctx context.Context, key string) error
	Abort(ctx context.Context, key string) error
}

// Engine is the single entry point to the scheduling core. It owns one
// lane per workspace and implements Scheduler.
type Engine struct {
	lanes     *registry
	tasks     TaskRepository
	estimator *Estimator
	journal   Journal
	clock     Clock
	logger    *slog.Logger
}

var _ Scheduler = (*Engine)(nil)

// Option configures optional Engine dependencies.
type Option func(*engineOptions)

type engineOptions struct {
	journal Journal
	clock   Clock
}

// WithJournal records completions, undos and purges in j.
func WithJournal(j Journal) Option {
	return func(o *engineOptions) { o.journal = j }
}

// WithClock sets the time source used for completion instants.
func WithClock(c Clock) Option {
	return func(o *engineOptions) { o.clock = c }
}

// NewEngine creates an Engine. tasks and dishes may be nil, in which case
// task rows are not persisted and the estimator never updates anything.
func NewEngine(tasks TaskRepository, dishes DishRepository, logger *slog.Logger, opts ...Option) *Engine {
	o := engineOptions{clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		lanes:     newRegistry(ByUrgency),
		tasks:     tasks,
		estimator: NewEstimator(dishes, logger),
		journal:   o.journal,
		clock:     o.clock,
		logger:    logger.With("component", "scheduler"),
	}
}

// Submit persists task and admits it to its workspace's active queue. The
// returned task carries the assigned Seq.
func (e *Engine) Submit(ctx context.Context, task model.Task) (model.Task, error) {
	if task.WorkspaceID == "" {
		return model.Task{}, ErrNoWorkspace
	}
	if task.State.IsTerminal() {
		return model.Task{}, fmt.Errorf("%w: submit %s task %s", ErrInvalidTransition, task.State, task.ID)
	}
	if task.ID == "" {
		task.ID = model.NewTaskID()
	}
	task = task.Clone()
	task.State = model.TaskStateActive
	task.CompletedAt = nil

	l := e.lanes.obtain(task.WorkspaceID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.Contains(task.ID) || l.ledger.Contains(task.ID) {
		return model.Task{}, fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}

	l.seq++
	task.Seq = l.seq
	if e.tasks != nil {
		if err := e.tasks.CreateTask(ctx, &task); err != nil {
			return model.Task{}, fmt.Errorf("persist task %s: %w", task.ID, err)
		}
	}
	l.queue.Push(task)

	e.logger.Info("task submitted",
		"workspace_id", task.WorkspaceID,
		"task_id", task.ID,
		"dish", task.DishName,
		"vip", task.VIP,
		"start_at", task.StartAt,
	)
	return task.Clone(), nil
}

// Next returns the most urgent active task of a workspace.
func (e *Engine) Next(workspaceID string) (model.Task, bool) {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return model.Task{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Peek()
}

// ActiveQueue returns a sorted snapshot of a workspace's active tasks.
func (e *Engine) ActiveQueue(workspaceID string) []model.Task {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return []model.Task{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Snapshot()
}

// History returns a workspace's completed tasks, oldest first.
func (e *Engine) History(workspaceID string) []model.Task {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return []model.Task{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ledger.List()
}

// Lookup finds a task in the active queue or the history.
func (e *Engine) Lookup(workspaceID, taskID string) (model.Task, bool) {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return model.Task{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.queue.Get(taskID); ok {
		return t, true
	}
	return l.ledger.Get(taskID)
}

// Stats summarises a workspace's lane.
func (e *Engine) Stats(workspaceID string) LaneStats {
	st := LaneStats{WorkspaceID: workspaceID}
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return st
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.queue.h.items {
		st.Active++
		if t.VIP {
			st.ActiveVIP++
		}
	}
	st.Completed = l.ledger.Len()
	return st
}

// Workspaces returns the IDs of every workspace with a lane.
func (e *Engine) Workspaces() []string {
	return e.lanes.ids()
}

// Complete removes an active task, appends it to history and feeds its
// latency to the estimator, all inside one critical section of the
// workspace. If persisting or estimating fails the in-memory move is rolled
// back and the error returned.
func (e *Engine) Complete(ctx context.Context, workspaceID, taskID string) (model.Task, error) {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotActive, taskID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	active, ok := l.queue.Get(taskID)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotActive, taskID)
	}
	if !active.State.CanTransitionTo(model.TaskStateCompleted) {
		return model.Task{}, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, active.State, model.TaskStateCompleted, taskID)
	}

	now := e.clock.Now()
	key, err := e.begin(ctx, l, journal.OpComplete, active, now)
	if err != nil {
		return model.Task{}, err
	}

	// Remove cannot fail here: Get just found the task under the same lock.
	done, _ := l.queue.Remove(taskID)
	done.State = model.TaskStateCompleted
	done.CompletedAt = &now
	l.ledger.Append(done)

	rollback := func(cause error) (model.Task, error) {
		l.ledger.Remove(taskID)
		l.queue.Push(active)
		e.abort(ctx, key)
		return model.Task{}, cause
	}

	if e.tasks != nil {
		if err := e.tasks.UpdateTaskState(ctx, taskID, model.TaskStateCompleted, &now); err != nil {
			return rollback(fmt.Errorf("persist completion of %s: %w", taskID, err))
		}
	}

	obs, err := e.estimator.Observe(ctx, done, now)
	if err != nil {
		if e.tasks != nil {
			if rerr := e.tasks.UpdateTaskState(ctx, taskID, model.TaskStateActive, nil); rerr != nil {
				e.logger.Error("revert task state", "task_id", taskID, "error", rerr)
			}
		}
		return rollback(fmt.Errorf("estimate %s: %w", taskID, err))
	}

	e.commit(ctx, key)
	e.logger.Info("task completed",
		"workspace_id", workspaceID,
		"task_id", taskID,
		"dish", done.DishName,
		"observed_minutes", obs.ObservedMinutes,
		"estimate_skipped", string(obs.Skipped),
	)
	return done.Clone(), nil
}

// Undo pops the most recently completed task and puts it back in the active
// queue exactly as it was, including its original StartAt. Dish estimates
// changed by the completion are left alone.
func (e *Engine) Undo(ctx context.Context, workspaceID string) (model.Task, error) {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return model.Task{}, ErrNothingToUndo
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.ledger.Last()
	if !ok {
		return model.Task{}, ErrNothingToUndo
	}
	if !last.State.CanTransitionTo(model.TaskStateActive) {
		return model.Task{}, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, last.State, model.TaskStateActive, last.ID)
	}

	key, err := e.begin(ctx, l, journal.OpUndo, last, e.clock.Now())
	if err != nil {
		return model.Task{}, err
	}

	completed, _ := l.ledger.UndoLast()
	restored := completed.Clone()
	restored.State = model.TaskStateActive
	restored.CompletedAt = nil

	if e.tasks != nil {
		if err := e.tasks.UpdateTaskState(ctx, restored.ID, model.TaskStateActive, nil); err != nil {
			l.ledger.Append(completed)
			e.abort(ctx, key)
			return model.Task{}, fmt.Errorf("persist undo of %s: %w", restored.ID, err)
		}
	}
	l.queue.Push(restored)

	e.commit(ctx, key)
	e.logger.Info("completion undone", "workspace_id", workspaceID, "task_id", restored.ID, "dish", restored.DishName)
	return restored.Clone(), nil
}

// Purge deletes a task from whichever container holds it and removes its
// stored row. It is the only way a task is destroyed.
func (e *Engine) Purge(ctx context.Context, workspaceID, taskID string) error {
	l, ok := e.lanes.get(workspaceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	task, inQueue := l.queue.Get(taskID)
	if !inQueue {
		var inLedger bool
		if task, inLedger = l.ledger.Get(taskID); !inLedger {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
	}

	key, err := e.begin(ctx, l, journal.OpPurge, task, e.clock.Now())
	if err != nil {
		return err
	}
	if e.tasks != nil {
		if err := e.tasks.DeleteTask(ctx, taskID); err != nil {
			e.abort(ctx, key)
			return fmt.Errorf("delete task %s: %w", taskID, err)
		}
	}
	if inQueue {
		l.queue.Remove(taskID)
	} else {
		l.ledger.Remove(taskID)
	}

	e.commit(ctx, key)
	e.logger.Info("task purged", "workspace_id", workspaceID, "task_id", taskID, "was_active", inQueue)
	return nil
}

func (e *Engine) begin(ctx context.Context, l *lane, op journal.Op, task model.Task, at time.Time) (string, error) {
	if e.journal == nil {
		return "", nil
	}
	l.ops++
	key, err := e.journal.Begin(ctx, journal.Entry{
		WorkspaceID: task.WorkspaceID,
		TaskID:      task.ID,
		Op:          op,
		Seq:         l.ops,
		At:          at,
		Task:        task,
	})
	if err != nil {
		if errors.Is(err, journal.ErrDuplicate) {
			return "", fmt.Errorf("%s %s already recorded: %w", op, task.ID, err)
		}
		return "", fmt.Errorf("journal %s %s: %w", op, task.ID, err)
	}
	return key, nil
}

func (e *Engine) commit(ctx context.Context, key string) {
	if e.journal == nil || key == "" {
		return
	}
	if err := e.journal.Commit(ctx, key); err != nil {
		// The in-memory change already happened; an uncommitted entry
		// shows up as pending on the next start.
		e.logger.Error("journal commit", "key", key, "error", err)
	}
}

func (e *Engine) abort(ctx context.Context, key string) {
	if e.journal == nil || key == "" {
		return
	}
	if err := e.journal.Abort(ctx, key); err != nil {
		e.logger.Error("journal abort", "key", key, "error", err)
	}
}
