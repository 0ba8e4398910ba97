package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tripwire/internal/trigger"
)

// SettleTimeoutError is returned by Settle when the requested number of
// quiet ticks was not observed before the timeout.
type SettleTimeoutError struct {
	// QuietTicks is the number of consecutive unchanged ticks requested.
	QuietTicks int

	// Timeout is the maximum wait that expired.
	Timeout time.Duration

	// IdleTicks is the idle counter when the timeout fired.
	IdleTicks int
}

// Error implements the error interface.
func (e *SettleTimeoutError) Error() string {
	return fmt.Sprintf("%s: agent did not settle: wanted %d quiet ticks within %s, observed %d",
		trigger.ErrCodeSettleTimeout, e.QuietTicks, e.Timeout, e.IdleTicks)
}

// ErrorCode returns trigger.ErrCodeSettleTimeout so trigger.HasCode matches it.
func (e *SettleTimeoutError) ErrorCode() trigger.ErrorCode {
	return trigger.ErrCodeSettleTimeout
}

// IsSettleTimeout returns true if err is (or wraps) a SettleTimeoutError.
func IsSettleTimeout(err error) bool {
	var se *SettleTimeoutError
	return errors.As(err, &se)
}

// IsAgentStopped returns true if err reports a settle request abandoned by Stop.
func IsAgentStopped(err error) bool {
	return trigger.HasCode(err, trigger.ErrCodeAgentStopped)
}

func newLifecycleError(code trigger.ErrorCode, msg string) *trigger.Error {
	return &trigger.Error{Code: code, Message: msg}
}
