package scheduler

import (
	"container/heap"
	"slices"

	"github.com/me/brigade/pkg/model"
)

// Queue holds a workspace's outstanding tasks in heap order under a Policy.
// An ID-to-position index makes removal by identity O(log n) and independent
// of the task's ordering fields.
//
// Queue is not safe for concurrent use; the owning lane serialises access.
type Queue struct {
	h taskHeap
}

// NewQueue returns an empty queue ordered by policy.
func NewQueue(policy Policy) *Queue {
	return &Queue{h: taskHeap{
		policy: policy,
		index:  make(map[string]int),
	}}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return len(q.h.items) }

// Push adds a task. Pushing an ID that is already queued replaces the
// queued copy.
// Time complexity: O(log n).
func (q *Queue) Push(task model.Task) {
	if i, ok := q.h.index[task.ID]; ok {
		q.h.items[i] = task
		heap.Fix(&q.h, i)
		return
	}
	heap.Push(&q.h, task)
}

// Peek returns the most urgent task without removing it.
// Time complexity: O(1).
func (q *Queue) Peek() (model.Task, bool) {
	if len(q.h.items) == 0 {
		return model.Task{}, false
	}
	return q.h.items[0].Clone(), true
}

// Get returns the queued task with the given ID.
func (q *Queue) Get(id string) (model.Task, bool) {
	i, ok := q.h.index[id]
	if !ok {
		return model.Task{}, false
	}
	return q.h.items[i].Clone(), true
}

// Contains reports whether a task with the given ID is queued.
func (q *Queue) Contains(id string) bool {
	_, ok := q.h.index[id]
	return ok
}

// Remove takes the task with the given ID out of the queue.
// Time complexity: O(log n).
func (q *Queue) Remove(id string) (model.Task, error) {
	i, ok := q.h.index[id]
	if !ok {
		return model.Task{}, ErrTaskNotActive
	}
	return heap.Remove(&q.h, i).(model.Task), nil
}

// Snapshot returns every queued task, most urgent first. The result is a
// copy; later queue mutations do not affect it.
// Time complexity: O(n log n).
func (q *Queue) Snapshot() []model.Task {
	out := make([]model.Task, len(q.h.items))
	for i, t := range q.h.items {
		out[i] = t.Clone()
	}
	slices.SortFunc(out, q.h.policy)
	return out
}

// taskHeap implements heap.Interface and keeps index in step with every swap.
type taskHeap struct {
	policy Policy
	items  []model.Task
	index  map[string]int
}

func (h *taskHeap) Len() int { return len(h.items) }

func (h *taskHeap) Less(i, j int) bool { return h.policy(h.items[i], h.items[j]) < 0 }

func (h *taskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].ID] = i
	h.index[h.items[j].ID] = j
}

func (h *taskHeap) Push(x any) {
	task := x.(model.Task)
	h.index[task.ID] = len(h.items)
	h.items = append(h.items, task)
}

func (h *taskHeap) Pop() any {
	n := len(h.items) - 1
	task := h.items[n]
	h.items[n] = model.Task{}
	h.items = h.items[:n]
	delete(h.index, task.ID)
	return task
}
