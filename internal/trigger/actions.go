package trigger

import (
	"context"
	"fmt"
)

// RunActions runs every action in order against s and returns the errors
// they produced, in order. A failing or panicking action does not stop the
// remaining ones. An empty result means every action succeeded.
func RunActions[S any](ctx context.Context, actions []Action[S], s S) []error {
	var errs []error
	for i, action := range actions {
		if err := runAction(ctx, action, s); err != nil {
			errs = append(errs, &ActionError{Index: i, Err: err})
		}
	}
	return errs
}

// ActionError records which action in a list failed.
type ActionError struct {
	// Index is the action's position in the trigger's action list.
	Index int

	// Err is the normalized error or panic value.
	Err error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.Err
}

func runAction[S any](ctx context.Context, action Action[S], s S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Normalize(r)
		}
	}()
	if action == nil {
		return nil
	}
	return action(ctx, s)
}
