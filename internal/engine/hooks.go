package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Hooks observe the scheduler. Every field is optional. Hooks run on the
// goroutine that produced the event (the loop for ticks and fires, the
// caller for settles) and must not block.
type Hooks struct {
	OnTick   func(TickEvent)
	OnFire   func(FireEvent)
	OnSettle func(SettleEvent)
}

// TickEvent describes one scheduler tick.
type TickEvent struct {
	Seq       int64
	Changed   bool
	Evaluated int
	Fired     int
	IdleTicks int
	Duration  time.Duration
}

// FireEvent describes one trigger whose action phase ran.
type FireEvent struct {
	Seq       int64
	TriggerID string
	Errors    []error
	Removed   bool
	Duration  time.Duration
	At        time.Time
}

// SettleOutcome is how a settle request ended.
type SettleOutcome string

const (
	SettleOutcomeSettled  SettleOutcome = "settled"
	SettleOutcomeTimeout  SettleOutcome = "timeout"
	SettleOutcomeStopped  SettleOutcome = "stopped"
	SettleOutcomeCanceled SettleOutcome = "canceled"
)

// SettleEvent describes a finished settle request.
type SettleEvent struct {
	QuietTicks int
	Timeout    time.Duration
	Outcome    SettleOutcome
	IdleTicks  int
	Waited     time.Duration
}

// ChainHooks combines hooks so each callback runs in argument order.
func ChainHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		out.OnTick = chain(out.OnTick, h.OnTick)
		out.OnFire = chain(out.OnFire, h.OnFire)
		out.OnSettle = chain(out.OnSettle, h.OnSettle)
	}
	return out
}

func chain[E any](first, second func(E)) func(E) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(e E) {
		first(e)
		second(e)
	}
}

// callHook runs fn and logs instead of propagating a panic.
func callHook[E any](logger *slog.Logger, name string, fn func(E), e E) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("hook panicked", "hook", name, "error", fmt.Sprint(r))
		}
	}()
	fn(e)
}
