package trigger

import "sync"

// Registry owns trigger definitions keyed by id, in insertion order, and the
// event-name to trigger-id associations used by event triggers.
//
// Thread-safety: all methods are safe for concurrent use. The agent's loop
// reads snapshots via All while callers add and remove triggers.
type Registry[S any] struct {
	mu       sync.RWMutex
	triggers map[string]Trigger[S]
	order    []string
	events   map[string][]string // event name -> trigger ids, insertion order
}

// NewRegistry creates an empty registry.
func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{
		triggers: make(map[string]Trigger[S]),
		events:   make(map[string][]string),
	}
}

// Add registers t. It fails with ErrCodeDuplicateTriggerID if the id is
// taken, leaving the registry unchanged.
func (r *Registry[S]) Add(t Trigger[S]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.triggers[t.ID]; exists {
		return NewDuplicateIDError(t.ID)
	}
	r.triggers[t.ID] = t
	r.order = append(r.order, t.ID)
	return nil
}

// Get returns the trigger registered under id.
func (r *Registry[S]) Get(id string) (Trigger[S], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[id]
	return t, ok
}

// Has reports whether id is registered.
func (r *Registry[S]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.triggers[id]
	return ok
}

// All returns a point-in-time snapshot of every trigger in insertion order.
func (r *Registry[S]) All() []Trigger[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Trigger[S], 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.triggers[id])
	}
	return out
}

// Len returns the number of registered triggers.
func (r *Registry[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Remove deletes the trigger registered under id and purges it from every
// event association. It fails with ErrCodeTriggerNotFound if id is absent.
func (r *Registry[S]) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.triggers[id]; !exists {
		return NewNotFoundError(id)
	}
	delete(r.triggers, id)
	r.order = without(r.order, id)

	for event, ids := range r.events {
		ids = without(ids, id)
		if len(ids) == 0 {
			delete(r.events, event)
			continue
		}
		r.events[event] = ids
	}
	return nil
}

// Clear removes every trigger and every event association.
func (r *Registry[S]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggers = make(map[string]Trigger[S])
	r.order = nil
	r.events = make(map[string][]string)
}

// Associate records that trigger id watches event. Associating the same
// pair twice keeps a single entry.
func (r *Registry[S]) Associate(event, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.events[event] {
		if existing == id {
			return
		}
	}
	r.events[event] = append(r.events[event], id)
}

// Dissociate removes the (event, id) pair and reports whether it existed.
// The trigger itself stays registered.
func (r *Registry[S]) Dissociate(event, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.events[event]
	if !ok {
		return false
	}
	remaining := without(ids, id)
	if len(remaining) == len(ids) {
		return false
	}
	if len(remaining) == 0 {
		delete(r.events, event)
	} else {
		r.events[event] = remaining
	}
	return true
}

// EventTriggers returns the ids associated with event, in insertion order.
func (r *Registry[S]) EventTriggers(event string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.events[event]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// EventIndex returns a copy of every event association.
func (r *Registry[S]) EventIndex() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.events))
	for event, ids := range r.events {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[event] = cp
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
