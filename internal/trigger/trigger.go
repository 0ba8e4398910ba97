package trigger

import (
	"context"
	"time"
)

// Predicate is a check or guard condition over the current state.
//
// A returned error (or panic) means different things depending on where the
// predicate is used: a failing check is reported to the agent's error sink,
// a failing condition is treated as "condition not met" and swallowed.
type Predicate[S any] func(ctx context.Context, s S) (bool, error)

// Action is a side effect over the live state. Actions run serially, so a
// mutation made by one action is visible to the next.
type Action[S any] func(ctx context.Context, s S) error

// Trigger pairs a check, optional guard conditions and a list of actions.
type Trigger[S any] struct {
	// ID is unique among all registered triggers.
	ID string

	// Check decides whether the trigger matches the state.
	Check Predicate[S]

	// Conditions are evaluated in order after Check passes.
	// An empty list always passes.
	Conditions []Predicate[S]

	// Actions run in order once Check and Conditions pass.
	Actions []Action[S]

	// Once marks a fire-once trigger: it is removed from the registry as soon
	// as its action phase completes, whether or not actions failed.
	// The zero value is a repeating trigger.
	Once bool

	// Delay, when positive, elapses between conditions passing and the
	// first action. Check is not re-evaluated after the delay.
	Delay time.Duration
}

// Repeat reports whether the trigger stays registered after firing.
func (t Trigger[S]) Repeat() bool {
	return !t.Once
}

// If lifts a plain boolean function into a Predicate.
func If[S any](fn func(S) bool) Predicate[S] {
	return func(_ context.Context, s S) (bool, error) {
		return fn(s), nil
	}
}

// Do lifts a plain function into an Action that never fails.
func Do[S any](fn func(S)) Action[S] {
	return func(_ context.Context, s S) error {
		fn(s)
		return nil
	}
}

// Always is a Predicate that always passes.
func Always[S any]() Predicate[S] {
	return func(context.Context, S) (bool, error) {
		return true, nil
	}
}
