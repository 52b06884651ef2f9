package job

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/Paintersrp/gosh/internal/parser"
)

// DefaultCapacity bounds the registry when the configuration does not say
// otherwise.
const DefaultCapacity = 1 << 16

// ErrCapacityExceeded is returned by Create when every id up to the
// configured capacity is in use. The launch that hit it fails; the shell
// keeps running.
var ErrCapacityExceeded = errors.New("maximum number of jobs exceeded")

// Registry allocates job ids and resolves them back to jobs. Ids start at 1
// and the smallest unused id is always assigned next, so a freshly emptied
// table hands out [1] again.
//
// Registry is not safe for concurrent use. The shell serializes access with
// the same lock that guards job state.
type Registry struct {
	capacity int

	// slots is indexed by id; slot 0 stays nil so ids are 1-based.
	slots []*Job

	// freed holds released ids below len(slots), as a min-heap so reuse
	// picks the smallest first.
	freed idHeap

	count int
}

// NewRegistry returns an empty registry holding at most capacity jobs.
// A non-positive capacity selects DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		slots:    make([]*Job, 1, 16),
	}
}

// Create registers a new job for p and assigns it the smallest unused id.
func (r *Registry) Create(p *parser.Pipeline) (*Job, error) {
	id := 0
	switch {
	case len(r.freed) > 0:
		id = heap.Pop(&r.freed).(int)
	case len(r.slots) <= r.capacity:
		id = len(r.slots)
		r.slots = append(r.slots, nil)
	default:
		return nil, ErrCapacityExceeded
	}

	j := &Job{
		ID:       id,
		Status:   Background,
		Pipeline: p,
	}
	r.slots[id] = j
	r.count++
	return j, nil
}

// Lookup returns the job with the given id, or nil when no such job exists.
func (r *Registry) Lookup(id int) *Job {
	if id <= 0 || id >= len(r.slots) {
		return nil
	}
	return r.slots[id]
}

// Delete removes a finished job and releases its id for reuse. Deleting a
// job that still has live processes is a caller bug and is refused.
func (r *Registry) Delete(id int) error {
	j := r.Lookup(id)
	if j == nil {
		return fmt.Errorf("job %d: no such job", id)
	}
	if j.Alive > 0 {
		return fmt.Errorf("job %d: %d processes still live", id, j.Alive)
	}
	r.remove(id)
	return nil
}

// ForceDelete removes a job regardless of live processes. It is reserved for
// spawn-failure unwinding, where the group has been killed and the reaper
// must not find the half-built job.
func (r *Registry) ForceDelete(id int) {
	if r.Lookup(id) == nil {
		return
	}
	r.remove(id)
}

func (r *Registry) remove(id int) {
	r.slots[id] = nil
	r.count--
	heap.Push(&r.freed, id)
}

// Jobs returns the live jobs in ascending id order.
func (r *Registry) Jobs() []*Job {
	out := make([]*Job, 0, r.count)
	for _, j := range r.slots {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}

// Len reports how many jobs are registered.
func (r *Registry) Len() int { return r.count }

// TotalAlive sums the unreaped process counts across all jobs. The reaper
// uses it to tell a clean ECHILD from a bookkeeping error.
func (r *Registry) TotalAlive() int {
	total := 0
	for _, j := range r.slots {
		if j != nil {
			total += j.Alive
		}
	}
	return total
}

// FindByPid returns the job owning pid, or nil when no job does.
func (r *Registry) FindByPid(pid int) *Job {
	for _, j := range r.slots {
		if j != nil && j.Owns(pid) {
			return j
		}
	}
	return nil
}

type idHeap []int

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(int)) }

func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
