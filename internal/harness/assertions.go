package harness

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the
// trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s", i+1, ev.Step, ev.Rule)
			if len(ev.Errors) > 0 {
				fmt.Fprintf(&buf, " errors=%v", ev.Errors)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertState:
			err = assertState(result, a)
		case AssertFired:
			err = assertFired(result, a)
		case AssertFiredOrder:
			err = assertFiredOrder(result, a)
		case AssertEvents:
			err = assertEvents(result, a)
		case AssertErrors:
			err = assertErrors(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertState checks expected paths by value and absent paths by absence.
// Values are compared after a JSON round trip so 3 and 3.0 are equal.
func assertState(result *Result, a Assertion) error {
	for _, path := range slices.Sorted(maps.Keys(a.Expect)) {
		want := a.Expect[path]
		got, ok := result.State.Get(path)
		if !ok {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s = %v", path, want),
				Actual:   "path not found",
				Trace:    result.Trace,
			}
		}
		if !jsonEqual(got, want) {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s = %v", path, want),
				Actual:   fmt.Sprintf("%s = %v", path, got),
				Trace:    result.Trace,
			}
		}
	}
	for _, path := range a.Absent {
		if got, ok := result.State.Get(path); ok {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s absent", path),
				Actual:   fmt.Sprintf("%s = %v", path, got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertFired(result *Result, a Assertion) error {
	if n := result.FireCount(a.Rule); n != a.Count {
		return &AssertionError{
			Type:     AssertFired,
			Expected: fmt.Sprintf("%d fires of %s", a.Count, a.Rule),
			Actual:   fmt.Sprintf("%d fires", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFiredOrder checks that each rule's first fire comes after the
// previous rule's first fire. Other fires may be interleaved.
func assertFiredOrder(result *Result, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range result.Trace {
		if _, seen := first[ev.Rule]; !seen {
			first[ev.Rule] = i
		}
	}

	for i, rule := range a.Rules {
		pos, ok := first[rule]
		if !ok {
			return &AssertionError{
				Type:     AssertFiredOrder,
				Expected: fmt.Sprintf("all rules fired: %v", a.Rules),
				Actual:   fmt.Sprintf("%s never fired", rule),
				Trace:    result.Trace,
			}
		}
		if i > 0 && first[a.Rules[i-1]] >= pos {
			return &AssertionError{
				Type:     AssertFiredOrder,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual:   fmt.Sprintf("%s fired before %s", rule, a.Rules[i-1]),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertEvents(result *Result, a Assertion) error {
	if n := result.Events[a.Event]; n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertEvents,
			Expected: fmt.Sprintf("%d emissions of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d emissions", n),
		}
	}
	return nil
}

func assertErrors(result *Result, a Assertion) error {
	n := 0
	for _, r := range result.Reported {
		if a.Code == "" || r.Code == a.Code {
			n++
		}
	}
	if n != a.Count {
		what := "errors"
		if a.Code != "" {
			what = a.Code + " errors"
		}
		return &AssertionError{
			Type:     AssertErrors,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %s", n, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

func jsonEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}
