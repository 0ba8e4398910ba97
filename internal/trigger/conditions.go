package trigger

import "context"

// EvaluateConditions runs conditions in order against s.
//
// It stops at the first condition that returns false, returns an error or
// panics, and reports false; later conditions are not invoked. Errors are
// swallowed on purpose: unlike action errors they never reach the error
// sink. An empty list passes.
func EvaluateConditions[S any](ctx context.Context, conditions []Predicate[S], s S) bool {
	for _, cond := range conditions {
		if !passes(ctx, cond, s) {
			return false
		}
	}
	return true
}

func passes[S any](ctx context.Context, cond Predicate[S], s S) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if cond == nil {
		return true
	}
	pass, err := cond(ctx, s)
	if err != nil {
		return false
	}
	return pass
}
