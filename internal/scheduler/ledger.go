package scheduler

import (
	"container/list"

	"github.com/me/brigade/pkg/model"
)

// Ledger is a workspace's history of completed tasks. Entries are appended
// and undone at the tail only; Remove exists for purging a single entry.
//
// Ledger is not safe for concurrent use; the owning lane serialises access.
type Ledger struct {
	entries *list.List
	byID    map[string]*list.Element
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: list.New(),
		byID:    make(map[string]*list.Element),
	}
}

// Len returns the number of completed tasks held.
func (l *Ledger) Len() int { return l.entries.Len() }

// Append records a completed task at the tail.
// Time complexity: O(1).
func (l *Ledger) Append(task model.Task) {
	if old, ok := l.byID[task.ID]; ok {
		l.entries.Remove(old)
	}
	l.byID[task.ID] = l.entries.PushBack(task)
}

// Last returns the most recently completed task without removing it.
func (l *Ledger) Last() (model.Task, bool) {
	e := l.entries.Back()
	if e == nil {
		return model.Task{}, false
	}
	return e.Value.(model.Task).Clone(), true
}

// UndoLast removes and returns the most recently completed task.
// Time complexity: O(1).
func (l *Ledger) UndoLast() (model.Task, bool) {
	e := l.entries.Back()
	if e == nil {
		return model.Task{}, false
	}
	task := l.entries.Remove(e).(model.Task)
	delete(l.byID, task.ID)
	return task, true
}

// Contains reports whether the ledger holds a task with the given ID.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// Get returns the entry with the given ID.
func (l *Ledger) Get(id string) (model.Task, bool) {
	e, ok := l.byID[id]
	if !ok {
		return model.Task{}, false
	}
	return e.Value.(model.Task).Clone(), true
}

// Remove deletes the entry with the given ID from anywhere in the ledger.
func (l *Ledger) Remove(id string) (model.Task, bool) {
	e, ok := l.byID[id]
	if !ok {
		return model.Task{}, false
	}
	delete(l.byID, id)
	return l.entries.Remove(e).(model.Task), true
}

// List returns all entries in completion order, oldest first.
func (l *Ledger) List() []model.Task {
	out := make([]model.Task, 0, l.entries.Len())
	for e := l.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.Task).Clone())
	}
	return out
}
