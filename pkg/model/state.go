package model

// TaskState records which container currently holds a Task.
type TaskState string

const (
	TaskStateActive    TaskState = "ACTIVE"
	TaskStateCompleted TaskState = "COMPLETED"
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the task has left the active queue.
// Completed tasks can still come back through undo.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted
}

// ValidTaskTransitions defines the allowed state transitions for Tasks.
var ValidTaskTransitions = map[TaskState][]TaskState{
	TaskStateActive:    {TaskStateCompleted},
	TaskStateCompleted: {TaskStateActive},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTaskState converts a stored string back into a TaskState.
// Unknown values map to TaskStateActive.
func ParseTaskState(s string) TaskState {
	switch TaskState(s) {
	case TaskStateCompleted:
		return TaskStateCompleted
	default:
		return TaskStateActive
	}
}
