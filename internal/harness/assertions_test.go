package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tripwire/internal/rules"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Step: 0, Rule: "a"},
		{Step: 0, Rule: "b", Errors: []string{"action 0: boom"}},
		{Step: 1, Rule: "a"},
		{Step: 1, Rule: "c"},
	}
	r.Reported = []ReportedError{
		{Code: "ACTION_FAILED", Rule: "b", Message: "boom"},
		{Code: "CHECK_FAILED", Rule: "c", Message: "bad"},
	}
	r.State = rules.State{"n": 3, "order": map[string]any{"total": 12.5, "tags": []any{"x"}}}
	r.Events["go"] = 2
	return r
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	failures := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertState, Expect: map[string]any{"n": 3.0, "order.total": 12.5, "order.tags": []any{"x"}}, Absent: []string{"missing"}},
		{Type: AssertFired, Rule: "a", Count: 2},
		{Type: AssertFired, Rule: "z", Count: 0},
		{Type: AssertFiredOrder, Rules: []string{"a", "b", "c"}},
		{Type: AssertEvents, Event: "go", Count: 2},
		{Type: AssertErrors, Count: 2},
		{Type: AssertErrors, Code: "CHECK_FAILED", Count: 1},
	})
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"state missing", Assertion{Type: AssertState, Expect: map[string]any{"nope": 1}}, "path not found"},
		{"state wrong", Assertion{Type: AssertState, Expect: map[string]any{"n": 4}}, "n = 3"},
		{"state present", Assertion{Type: AssertState, Absent: []string{"n"}}, "n absent"},
		{"fired count", Assertion{Type: AssertFired, Rule: "a", Count: 1}, "2 fires"},
		{"order missing", Assertion{Type: AssertFiredOrder, Rules: []string{"a", "z"}}, "z never fired"},
		{"order wrong", Assertion{Type: AssertFiredOrder, Rules: []string{"c", "a"}}, "a fired before c"},
		{"events", Assertion{Type: AssertEvents, Event: "go", Count: 1}, "2 emissions"},
		{"errors by code", Assertion{Type: AssertErrors, Code: "ACTION_FAILED", Count: 0}, "1 ACTION_FAILED errors"},
		{"unknown", Assertion{Type: "vibes"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if assert.Len(t, failures, 1) {
				assert.Contains(t, failures[0], tt.want)
			}
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFired,
		Expected: "1",
		Actual:   "2",
		Trace:    []TraceEvent{{Step: 1, Rule: "a", Errors: []string{"x"}}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: fired")
	assert.Contains(t, msg, "[1] step 1 a errors=[x]")
}
