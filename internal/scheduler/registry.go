package scheduler

import (
	"slices"
	"sync"
)

// lane is one workspace's scheduling state. mu serialises every operation
// on queue and ledger.
type lane struct {
	mu     sync.Mutex
	queue  *Queue
	ledger *Ledger
	seq    uint64 // last insertion sequence handed out
	ops    uint64 // journal operation counter
}

// registry maps workspace IDs to lanes, creating each lane exactly once.
type registry struct {
	mu      sync.RWMutex
	lanes   map[string]*lane
	policy  Policy
	created int // lanes created, for tests
}

func newRegistry(policy Policy) *registry {
	return &registry{
		lanes:  make(map[string]*lane),
		policy: policy,
	}
}

// get returns the lane for id without creating it.
func (r *registry) get(id string) (*lane, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lanes[id]
	return l, ok
}

// obtain returns the lane for id, creating it on first use. Concurrent
// first calls for the same id all receive the same lane.
func (r *registry) obtain(id string) *lane {
	if l, ok := r.get(id); ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lanes[id]; ok {
		return l
	}
	l := &lane{
		queue:  NewQueue(r.policy),
		ledger: NewLedger(),
	}
	r.lanes[id] = l
	r.created++
	return l
}

// ids returns the known workspace IDs in sorted order.
func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.lanes))
	for id := range r.lanes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *registry) createdCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created
}
