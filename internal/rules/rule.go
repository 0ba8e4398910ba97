package rules

import (
	"time"
)

// Rule is one declarative trigger.
type Rule struct {
	// ID names the installed trigger.
	ID string

	// Match is a CUE constraint the state must satisfy. Empty matches
	// every state.
	Match string

	// Event, when set, makes the rule fire on emissions of that event
	// instead of on state changes. Match then acts as a guard.
	Event string

	// Guards are extra CUE constraints checked after Match.
	Guards []string

	// Once removes the rule after its first firing.
	Once bool

	// Delay waits between the rule matching and its steps running.
	Delay time.Duration

	// Do lists the steps run in order when the rule fires.
	Do []Step

	// Retry re-runs a failing step. Nil runs each step once.
	Retry *RetryPolicy

	// Timeout bounds each step attempt. Zero means no bound.
	Timeout time.Duration
}

// RetryPolicy configures step retries.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Step is a single state change or side effect. Exactly one field is set.
type Step struct {
	// Set assigns values at dotted paths.
	Set map[string]any

	// Incr adds to integer values at dotted paths. Missing paths start at 0.
	Incr map[string]int

	// Delete removes dotted paths.
	Delete []string

	// Emit emits the named event.
	Emit string

	// Fail makes the step return an error with this message.
	Fail string
}

// Kind reports which field of the step is set.
func (s Step) Kind() string {
	switch {
	case s.Set != nil:
		return "set"
	case s.Incr != nil:
		return "incr"
	case s.Delete != nil:
		return "delete"
	case s.Emit != "":
		return "emit"
	case s.Fail != "":
		return "fail"
	}
	return ""
}
