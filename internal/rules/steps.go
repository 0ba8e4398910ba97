package rules

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/trigger"
)

// ErrStepFailed is wrapped by errors from fail steps.
var ErrStepFailed = errors.New("step failed")

// stepAction turns a step into an action on a. State-changing steps read
// the latest state rather than the one the trigger matched, so later steps
// see earlier ones.
func stepAction(a *engine.Agent[State], step Step) (trigger.Action[State], error) {
	switch step.Kind() {
	case "set":
		return mutate(a, func(s State) error {
			for path, v := range step.Set {
				s.Set(path, cloneValue(v))
			}
			return nil
		}), nil
	case "incr":
		return mutate(a, func(s State) error {
			for path, by := range step.Incr {
				cur, _ := s.Get(path)
				n, err := addInt(cur, by)
				if err != nil {
					return fmt.Errorf("incr %s: %w", path, err)
				}
				s.Set(path, n)
			}
			return nil
		}), nil
	case "delete":
		return mutate(a, func(s State) error {
			for _, path := range step.Delete {
				s.Delete(path)
			}
			return nil
		}), nil
	case "emit":
		return func(context.Context, State) error {
			a.EmitEvent(step.Emit)
			return nil
		}, nil
	case "fail":
		return func(context.Context, State) error {
			return fmt.Errorf("%w: %s", ErrStepFailed, step.Fail)
		}, nil
	}
	return nil, fmt.Errorf("step sets no operation")
}

func mutate(a *engine.Agent[State], apply func(State) error) trigger.Action[State] {
	return func(context.Context, State) error {
		next := a.State().Clone()
		if err := apply(next); err != nil {
			return err
		}
		a.SetState(next)
		return nil
	}
}

func addInt(cur any, by int) (any, error) {
	switch n := cur.(type) {
	case nil:
		return by, nil
	case int:
		return n + by, nil
	case int64:
		return n + int64(by), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n) + by, nil
		}
		return n + float64(by), nil
	}
	return nil, fmt.Errorf("value %v is not a number", cur)
}
