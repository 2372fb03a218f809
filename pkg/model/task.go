package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is a single cooking job derived from a customer order.
//
// A Task is a plain record: ordering lives in the scheduler's policy, not here.
type Task struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	DishID      string    `json:"dish_id"`
	DishName    string    `json:"dish_name"`
	TableNumber int       `json:"table_number"`
	Quantity    int       `json:"quantity"`
	VIP         bool      `json:"is_vip"`
	State       TaskState `json:"state"`

	// PlacedAt is when the order was accepted.
	PlacedAt time.Time `json:"placed_at"`

	// PrepMinutes is the dish estimate copied at placement time. Later
	// estimator updates never touch tasks that already exist.
	PrepMinutes int `json:"prep_minutes"`

	// StartAt is PlacedAt + PrepMinutes, the scheduling key for non-VIP ties.
	StartAt time.Time `json:"start_at"`

	// Allergies are the allergen strings declared by the customer.
	Allergies []string `json:"allergies,omitempty"`

	// Seq is the insertion sequence within the workspace, assigned by the
	// engine on submit. It breaks ties between otherwise equal tasks.
	Seq uint64 `json:"seq"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string {
	return "ord_" + uuid.New().String()
}

// NewTask builds an active task placed at placedAt and derives StartAt from
// the dish's current estimate.
func NewTask(workspaceID string, dish *Dish, table, quantity int, vip bool, placedAt time.Time) Task {
	t := Task{
		ID:          NewTaskID(),
		WorkspaceID: workspaceID,
		DishID:      dish.ID,
		DishName:    dish.Name,
		TableNumber: table,
		Quantity:    quantity,
		VIP:         vip,
		State:       TaskStateActive,
		PlacedAt:    placedAt,
	}
	t.Reprice(dish.PrepMinutes)
	return t
}

// Reprice sets the expected preparation time and re-derives StartAt.
// Only meaningful before the task has been submitted to a scheduler.
func (t *Task) Reprice(prepMinutes int) {
	t.PrepMinutes = prepMinutes
	t.StartAt = t.PlacedAt.Add(time.Duration(prepMinutes) * time.Minute)
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.Allergies != nil {
		t.Allergies = append([]string(nil), t.Allergies...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}
