// Package state provides the reactive value cell that backs an agent.
//
// A Container holds exactly one value of a caller-defined type. Set replaces
// the value wholesale (no merging) and synchronously notifies subscribers in
// subscription order. A panicking subscriber is logged and skipped; it never
// prevents later subscribers from running and never reaches the caller of Set.
//
// The container only guards the cell itself. When S is a pointer or map,
// holders of the value may mutate it in place; that is the documented way
// trigger actions cascade, and the container does not observe it.
package state

import (
	"fmt"
	"log/slog"
	"sync"
)

// Container is a reactive value cell.
//
// Thread-safety: Get, Set and Subscribe are safe for concurrent use.
// Subscribers run on the goroutine that called Set, outside the lock, so
// they may call Get (or Set) without deadlocking.
type Container[S any] struct {
	mu     sync.RWMutex
	value  S
	subs   []*subscription[S]
	nextID uint64
	logger *slog.Logger
}

type subscription[S any] struct {
	id uint64
	fn func(S)
}

// Option configures a Container.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report subscriber failures.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a container holding initial.
func New[S any](initial S, opts ...Option) *Container[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Container[S]{
		value:  initial,
		logger: o.logger,
	}
}

// Get returns the current value.
func (c *Container[S]) Get() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies every subscriber with the new value.
func (c *Container[S]) Set(v S) {
	c.mu.Lock()
	c.value = v
	subs := make([]*subscription[S], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		c.notify(sub, v)
	}
}

// Subscribe registers fn and returns a function that removes exactly this
// registration. Calling the returned function more than once is harmless.
func (c *Container[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	sub := &subscription[S]{id: c.nextID, fn: fn}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.remove(sub.id)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (c *Container[S]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func (c *Container[S]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Container[S]) notify(sub *subscription[S], v S) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("state subscriber failed",
				"subscription", sub.id,
				"error", fmt.Sprint(r),
			)
		}
	}()
	sub.fn(v)
}
