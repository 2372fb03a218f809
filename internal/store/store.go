package store

import (
	"context"
	"time"

	"github.com/me/brigade/pkg/model"
)

// Store defines the persistence layer for brigade entities.
//
// Get methods return (nil, nil) when the row does not exist.
type Store interface {
	// Workspace CRUD
	CreateWorkspace(ctx context.Context, ws *model.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context, opts model.ListOptions) ([]*model.Workspace, int, error)

	// Dish CRUD
	CreateDish(ctx context.Context, dish *model.Dish) error
	GetDish(ctx context.Context, id string) (*model.Dish, error)
	ListDishes(ctx context.Context, workspaceID string) ([]*model.Dish, error)
	UpdateDish(ctx context.Context, dish *model.Dish) error
	UpdateDishPrepMinutes(ctx context.Context, id string, from, to int) (bool, error)
	DeleteDish(ctx context.Context, id string) error
	DeleteDishesByWorkspace(ctx context.Context, workspaceID string) (int, error)

	// Task rows
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, int, error)
	UpdateTaskState(ctx context.Context, id string, state model.TaskState, completedAt *time.Time) error
	DeleteTask(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
