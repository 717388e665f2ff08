// Package registry owns the set of posted tasks.
// Tasks live in an append-only slice indexed by an id lookup; removal leaves
// a hole so positions never shift, and ids are never reused.
package registry

import (
	"fmt"

	"github.com/taskbay/taskbay/internal/domain"
)

// Registry stores tasks by id. Not safe for concurrent use; the platform
// engine serializes access.
type Registry struct {
	slots  []*domain.Task
	index  map[uint64]int // id → slot
	nextID uint64
	live   int
}

// New creates an empty registry whose first id is 1.
func New() *Registry {
	return &Registry{index: make(map[uint64]int), nextID: 1}
}

// Restore rebuilds the registry from persisted tasks (in id order) and the
// persisted id counter.
func (r *Registry) Restore(tasks []domain.Task, nextID uint64) {
	r.slots = make([]*domain.Task, 0, len(tasks))
	r.index = make(map[uint64]int, len(tasks))
	r.live = 0
	for i := range tasks {
		t := tasks[i].Clone()
		r.index[t.ID] = len(r.slots)
		r.slots = append(r.slots, t)
		r.live++
		if t.ID >= nextID {
			nextID = t.ID + 1
		}
	}
	if nextID == 0 {
		nextID = 1
	}
	r.nextID = nextID
}

// NextID returns the id the next Create will assign.
func (r *Registry) NextID() uint64 {
	return r.nextID
}

// Create stores a new task under the next unused id and returns that id.
func (r *Registry) Create(t *domain.Task) uint64 {
	c := t.Clone()
	c.ID = r.nextID
	r.nextID++
	r.index[c.ID] = len(r.slots)
	r.slots = append(r.slots, c)
	r.live++
	return c.ID
}

// Get returns a copy of the task.
func (r *Registry) Get(id uint64) (*domain.Task, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	return r.slots[i].Clone(), nil
}

// Put replaces an existing task's state.
func (r *Registry) Put(t *domain.Task) error {
	i, ok := r.index[t.ID]
	if !ok {
		return fmt.Errorf("task %d: %w", t.ID, domain.ErrNotFound)
	}
	r.slots[i] = t.Clone()
	return nil
}

// Remove deletes a task and returns its final state.
func (r *Registry) Remove(id uint64) (*domain.Task, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	t := r.slots[i]
	r.slots[i] = nil
	delete(r.index, id)
	r.live--
	return t, nil
}

// List returns copies of all live tasks in insertion order.
func (r *Registry) List() []domain.Task {
	out := make([]domain.Task, 0, r.live)
	for _, t := range r.slots {
		if t != nil {
			out = append(out, *t.Clone())
		}
	}
	return out
}

// Len returns the number of live tasks.
func (r *Registry) Len() int {
	return r.live
}
