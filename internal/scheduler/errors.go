package scheduler

import "errors"

var (
	// ErrTaskNotActive is returned when a task expected in the active queue
	// is not there, e.g. completing the same order twice.
	ErrTaskNotActive = errors.New("task is not in the active queue")

	// ErrNothingToUndo is returned by Undo when the workspace has no
	// completed tasks.
	ErrNothingToUndo = errors.New("no completed task to undo")

	// ErrTaskNotFound is returned by Purge when neither container holds
	// the task.
	ErrTaskNotFound = errors.New("task not found in workspace")

	// ErrDuplicateTask is returned by Submit when the ID is already
	// scheduled or in history.
	ErrDuplicateTask = errors.New("task already known to workspace")

	// ErrInvalidTransition is returned when a task's recorded state does
	// not allow the requested move.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrNoWorkspace is returned by Submit for a task without a workspace.
	ErrNoWorkspace = errors.New("task has no workspace")
)
