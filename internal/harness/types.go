package harness

import (
	"github.com/roach88/tripwire/internal/rules"
)

// TraceEvent is one rule fire.
type TraceEvent struct {
	// Step is the scenario step that led to the fire; 0 is the initial
	// settle after Start.
	Step    int      `json:"step"`
	Rule    string   `json:"rule"`
	Errors  []string `json:"errors,omitempty"`
	Removed bool     `json:"removed,omitempty"`
	Tick    int64    `json:"-"`
}

// ReportedError is an error the agent reported during the run.
type ReportedError struct {
	Code    string `json:"code"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists fires in order.
	Trace []TraceEvent `json:"trace"`

	// Reported lists errors routed to the agent's error handler.
	Reported []ReportedError `json:"reported,omitempty"`

	// Errors holds failed assertion messages.
	Errors []string `json:"errors,omitempty"`

	// State is the final state.
	State rules.State `json:"state"`

	// Events counts emissions per event named by an events assertion.
	Events map[string]int64 `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  rules.State{},
		Events: map[string]int64{},
	}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FireCount returns how many times rule fired.
func (r *Result) FireCount(rule string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Rule == rule {
			n++
		}
	}
	return n
}
