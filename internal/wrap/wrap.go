// Package wrap decorates trigger actions with retry, timeout, circuit
// breaking, rate limiting and post-condition validation. Each wrapper takes
// an action and returns an action, so they nest:
//
//	act := wrap.Timeout(wrap.Retry(callModel, wrap.DefaultRetryConfig()), 5*time.Second)
//
// The agent runs actions serially on its loop goroutine, so a retried or
// slow action holds up every trigger behind it in the same tick.
package wrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/roach88/tripwire/internal/trigger"
)

var (
	// ErrTimeout is wrapped by errors from Timeout.
	ErrTimeout = errors.New("action timed out")

	// ErrRateLimited is returned by RateLimit when no token is available.
	ErrRateLimited = errors.New("action rate limited")
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
}

// DefaultRetryConfig returns three attempts starting at 100ms, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// Retry re-runs action with exponential backoff until it succeeds or the
// attempts are exhausted. action must tolerate running more than once.
func Retry[S any](action trigger.Action[S], cfg RetryConfig) trigger.Action[S] {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultRetryConfig().Multiplier
	}
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    cfg.Multiplier,
	})
	return func(ctx context.Context, s S) error {
		_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, run(ctx, action, s)
		})
		return err
	}
}

// Timeout fails with ErrTimeout if action has not returned within d. The
// action's context is cancelled at the deadline; an action that ignores its
// context keeps running in the background after Timeout returns.
func Timeout[S any](action trigger.Action[S], d time.Duration) trigger.Action[S] {
	return func(ctx context.Context, s S) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- run(ctx, action, s)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrTimeout, d)
			}
			return ctx.Err()
		}
	}
}

// BreakerConfig configures CircuitBreaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int

	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// CircuitBreaker stops calling action after Threshold consecutive failures
// and fails fast until OpenTimeout has passed.
func CircuitBreaker[S any](action trigger.Action[S], cfg BreakerConfig) trigger.Action[S] {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	breaker := circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    cfg.OpenTimeout,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
		},
	})
	return func(ctx context.Context, s S) error {
		_, err := breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, run(ctx, action, s)
		})
		return err
	}
}

// RateLimit skips action with ErrRateLimited when the token bucket under
// key is empty. rate is tokens per second; burst is the bucket capacity.
func RateLimit[S any](action trigger.Action[S], key string, rate, burst int) trigger.Action[S] {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = rate
	}
	limiter := ratelimit.New(&ratelimit.Config{
		Rate:  rate,
		Burst: burst,
	})
	return func(ctx context.Context, s S) error {
		if !limiter.Allow(ctx, key) {
			return fmt.Errorf("%w: %s", ErrRateLimited, key)
		}
		return action(ctx, s)
	}
}

// ValidationError reports a post-condition that failed after an action.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "post-condition failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate runs action, then validate on the same state value. Use it with
// pointer or map state, where the action's changes are visible through s.
func Validate[S any](action trigger.Action[S], validate func(S) error) trigger.Action[S] {
	return func(ctx context.Context, s S) error {
		if err := action(ctx, s); err != nil {
			return err
		}
		if err := validate(s); err != nil {
			return &ValidationError{Err: err}
		}
		return nil
	}
}

// run calls action, converting a panic into an error so retry and breaker
// accounting see it as a failure.
func run[S any](ctx context.Context, action trigger.Action[S], s S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = trigger.Normalize(r)
		}
	}()
	return action(ctx, s)
}
