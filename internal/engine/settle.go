package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/tripwire/internal/trigger"
)

const (
	// DefaultQuietTicks is the number of consecutive unchanged ticks Settle waits for.
	DefaultQuietTicks = 2

	// DefaultSettleTimeout bounds how long Settle waits.
	DefaultSettleTimeout = 10 * time.Second
)

type settleConfig struct {
	quietTicks int
	timeout    time.Duration
}

// SettleOption configures one Settle call.
type SettleOption func(*settleConfig)

// WithQuietTicks sets the number of consecutive unchanged ticks to wait for.
func WithQuietTicks(n int) SettleOption {
	return func(c *settleConfig) {
		c.quietTicks = n
	}
}

// WithSettleTimeout sets the maximum wait.
func WithSettleTimeout(d time.Duration) SettleOption {
	return func(c *settleConfig) {
		c.timeout = d
	}
}

type settleWaiter struct {
	quietTicks int
	done       chan error
	once       sync.Once
}

func newSettleWaiter(quietTicks int) *settleWaiter {
	return &settleWaiter{quietTicks: quietTicks, done: make(chan error, 1)}
}

// finish resolves the waiter. Only the first call has an effect.
func (w *settleWaiter) finish(err error) {
	w.once.Do(func() {
		w.done <- err
	})
}

// Settle blocks until the loop has observed the configured number of
// consecutive ticks without a change. It returns nil immediately if the
// idle counter already meets the threshold and no change is pending.
//
// Errors:
//   - ErrCodeNotRunning if the agent is not running
//   - ErrCodeInvalidSettleArgument if quiet ticks or timeout is not positive
//   - *SettleTimeoutError if the timeout expires first
//   - ErrCodeAgentStopped if Stop is called while waiting
//   - ctx.Err() if ctx is done first
func (a *Agent[S]) Settle(ctx context.Context, opts ...SettleOption) error {
	cfg := settleConfig{quietTicks: DefaultQuietTicks, timeout: DefaultSettleTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	a.mu.Lock()
	if a.status != StatusRunning {
		a.mu.Unlock()
		return newLifecycleError(trigger.ErrCodeNotRunning, "agent is not running")
	}
	if cfg.quietTicks <= 0 || cfg.timeout <= 0 {
		a.mu.Unlock()
		return &trigger.Error{
			Code:    trigger.ErrCodeInvalidSettleArgument,
			Message: "quiet ticks and timeout must be positive",
		}
	}
	// A pending change means the idle count is about to drop to zero.
	if !a.changed.Load() && a.idle >= cfg.quietTicks {
		idle := a.idle
		a.mu.Unlock()
		a.settled(cfg, SettleOutcomeSettled, idle, 0)
		return nil
	}
	w := newSettleWaiter(cfg.quietTicks)
	a.waiters = append(a.waiters, w)
	a.mu.Unlock()

	start := time.Now()
	timer := time.NewTimer(cfg.timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-w.done:
	case <-timer.C:
		if idle, dropped := a.dropWaiter(w); dropped {
			err = &SettleTimeoutError{QuietTicks: cfg.quietTicks, Timeout: cfg.timeout, IdleTicks: idle}
			a.logger.Warn("settle timed out", "quiet_ticks", cfg.quietTicks, "timeout", cfg.timeout, "idle_ticks", idle)
		} else {
			err = <-w.done
		}
	case <-ctx.Done():
		if _, dropped := a.dropWaiter(w); dropped {
			err = ctx.Err()
		} else {
			err = <-w.done
		}
	}

	a.settled(cfg, settleOutcome(err), a.IdleTicks(), time.Since(start))
	return err
}

// dropWaiter removes w if it is still pending. It returns false when the
// loop or Stop already resolved it.
func (a *Agent[S]) dropWaiter(w *settleWaiter) (idle int, dropped bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, pending := range a.waiters {
		if pending == w {
			a.waiters = append(a.waiters[:i:i], a.waiters[i+1:]...)
			return a.idle, true
		}
	}
	return a.idle, false
}

func (a *Agent[S]) settled(cfg settleConfig, outcome SettleOutcome, idle int, waited time.Duration) {
	callHook(a.logger, "settle", a.hooks.OnSettle, SettleEvent{
		QuietTicks: cfg.quietTicks,
		Timeout:    cfg.timeout,
		Outcome:    outcome,
		IdleTicks:  idle,
		Waited:     waited,
	})
}

func settleOutcome(err error) SettleOutcome {
	switch {
	case err == nil:
		return SettleOutcomeSettled
	case IsSettleTimeout(err):
		return SettleOutcomeTimeout
	case IsAgentStopped(err):
		return SettleOutcomeStopped
	default:
		return SettleOutcomeCanceled
	}
}
