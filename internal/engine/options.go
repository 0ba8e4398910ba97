package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/tripwire/internal/trigger"
)

// DefaultTickInterval is the polling period used when none is configured.
const DefaultTickInterval = 10 * time.Millisecond

type config struct {
	logger   *slog.Logger
	onError  func(error)
	interval time.Duration
	ids      IDGenerator
	hooks    Hooks
	triggers []any
}

// Option configures an Agent at construction time.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler sets the sink that receives check, action and loop
// failures. Without one, failures are logged at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithTickInterval sets the polling period. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithIDGenerator replaces the generator behind When, Once and On ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *config) {
		if gen != nil {
			c.ids = gen
		}
	}
}

// WithHooks installs observation callbacks. Repeated calls chain.
func WithHooks(h Hooks) Option {
	return func(c *config) {
		c.hooks = ChainHooks(c.hooks, h)
	}
}

// WithTriggers registers triggers at construction. Construction fails if any
// is invalid or two share an id.
func WithTriggers[S any](triggers ...trigger.Trigger[S]) Option {
	return func(c *config) {
		for _, t := range triggers {
			c.triggers = append(c.triggers, t)
		}
	}
}
