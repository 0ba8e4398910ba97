package testutil

import "sync"

// Counter is a thread-safe call counter for checks and actions that run on
// the agent's loop goroutine while the test reads from its own.
type Counter struct {
	mu sync.Mutex
	n  int
}

// Inc increments the counter and returns the new value.
func (c *Counter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Load returns the current value.
func (c *Counter) Load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset sets the counter back to 0.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
