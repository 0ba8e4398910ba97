package trigger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors raised by triggers, the registry and the agent.
type ErrorCode string

const (
	// ErrCodeDuplicateTriggerID indicates an id is already registered.
	ErrCodeDuplicateTriggerID ErrorCode = "DUPLICATE_TRIGGER_ID"

	// ErrCodeTriggerNotFound indicates no trigger is registered under an id.
	ErrCodeTriggerNotFound ErrorCode = "TRIGGER_NOT_FOUND"

	// ErrCodeInvalidTrigger indicates a definition without id or check,
	// or one using the reserved generated-id prefix.
	ErrCodeInvalidTrigger ErrorCode = "INVALID_TRIGGER"

	// ErrCodeAlreadyRunning indicates Start on a running agent.
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// ErrCodeNotRunning indicates Stop or Settle on an agent that is not running.
	ErrCodeNotRunning ErrorCode = "NOT_RUNNING"

	// ErrCodeInvalidSettleArgument indicates a non-positive quiet tick count.
	ErrCodeInvalidSettleArgument ErrorCode = "INVALID_SETTLE_ARGUMENT"

	// ErrCodeSettleTimeout indicates a settle request expired.
	ErrCodeSettleTimeout ErrorCode = "SETTLE_TIMEOUT"

	// ErrCodeAgentStopped indicates a settle request was pending when the agent stopped.
	ErrCodeAgentStopped ErrorCode = "AGENT_STOPPED"

	// ErrCodeCheckFailed wraps an error (or panic) from a trigger's check.
	ErrCodeCheckFailed ErrorCode = "CHECK_FAILED"

	// ErrCodeActionFailed wraps an error (or panic) from one action.
	ErrCodeActionFailed ErrorCode = "ACTION_FAILED"

	// ErrCodeLoopFailed wraps an unexpected failure inside the scheduler loop.
	ErrCodeLoopFailed ErrorCode = "LOOP_FAILED"
)

// Error is the uniform error value of the trigger engine.
//
// Structural misuse (duplicate id, unknown id, wrong lifecycle state) is
// returned directly to the caller. Runtime failures from checks and actions
// are wrapped in an Error carrying the trigger id and routed to the error sink.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// TriggerID identifies the affected trigger, if any.
	TriggerID string

	// Err is the underlying cause, if any.
	Err error

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.TriggerID != "" {
		return fmt.Sprintf("%s: %s (trigger=%s)", e.Code, msg, e.TriggerID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code. It lets other error types in the engine
// participate in HasCode.
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}

// coder is implemented by every error type carrying an ErrorCode.
type coder interface {
	ErrorCode() ErrorCode
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if c, ok := err.(coder); ok && c.ErrorCode() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the first code found in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// NewDuplicateIDError creates an Error for an id collision.
func NewDuplicateIDError(id string) *Error {
	return &Error{
		Code:      ErrCodeDuplicateTriggerID,
		Message:   "trigger id already registered",
		TriggerID: id,
	}
}

// NewNotFoundError creates an Error for an unknown id.
func NewNotFoundError(id string) *Error {
	return &Error{
		Code:      ErrCodeTriggerNotFound,
		Message:   "trigger not found",
		TriggerID: id,
	}
}

// Normalize turns a returned error or a recovered panic value into an error.
// Non-error values are wrapped with their printed form as the message.
func Normalize(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case error:
		return x
	case string:
		return errors.New(x)
	default:
		return errors.New(fmt.Sprint(x))
	}
}
