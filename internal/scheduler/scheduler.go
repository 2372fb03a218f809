// Package scheduler is the per-workspace kitchen scheduling engine.
//
// Each workspace owns a lane: an active Queue ordered by a Policy and a
// Ledger of completed tasks supporting LIFO undo. The Engine routes every
// operation to the lane of the task's workspace and serialises work within
// a lane; lanes never coordinate with each other.
package scheduler

import (
	"context"
	"time"

	"github.com/me/brigade/pkg/model"
)

// Scheduler is the operation surface the request layer talks to.
type Scheduler interface {
	// Submit admits a new task into its workspace's active queue.
	Submit(ctx context.Context, task model.Task) (model.Task, error)

	// Next returns the most urgent active task. ok is false when the
	// workspace has no outstanding work.
	Next(workspaceID string) (task model.Task, ok bool)

	// ActiveQueue returns all active tasks, most urgent first.
	ActiveQueue(workspaceID string) []model.Task

	// Complete moves an active task into history and feeds the estimator.
	Complete(ctx context.Context, workspaceID, taskID string) (model.Task, error)

	// Undo returns the most recently completed task to the active queue.
	Undo(ctx context.Context, workspaceID string) (model.Task, error)

	// History returns completed tasks, oldest first.
	History(workspaceID string) []model.Task

	// Purge destroys a task wherever it currently lives.
	Purge(ctx context.Context, workspaceID, taskID string) error

	// Lookup finds a task in either container.
	Lookup(workspaceID, taskID string) (model.Task, bool)

	// Stats summarises a workspace's lane.
	Stats(workspaceID string) LaneStats
}

// Clock supplies the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// DishRepository is the slice of the dish store the estimator needs.
// GetDish returns (nil, nil) when the dish does not exist.
// UpdateDishPrepMinutes writes only the estimate and only while it still
// equals from; ok is false when the dish changed or vanished meanwhile.
type DishRepository interface {
	GetDish(ctx context.Context, id string) (*model.Dish, error)
	UpdateDishPrepMinutes(ctx context.Context, id string, from, to int) (ok bool, err error)
}

// TaskRepository persists raw task rows. The active schedule itself is
// never rebuilt from it.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTaskState(ctx context.Context, id string, state model.TaskState, completedAt *time.Time) error
	DeleteTask(ctx context.Context, id string) error
}

// LaneStats summarises one workspace.
type LaneStats struct {
	WorkspaceID string `json:"workspace_id"`
	Active      int    `json:"active"`
	ActiveVIP   int    `json:"active_vip"`
	Completed   int    `json:"completed"`
}
