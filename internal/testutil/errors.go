package testutil

import (
	"sync"

	"github.com/roach88/tripwire/internal/trigger"
)

// ErrorSink records every error passed to Handle. Pass its Handle method
// as an agent's error handler.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ErrorSink struct {
	mu   sync.Mutex
	errs []error
}

// Handle records err.
func (s *ErrorSink) Handle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Errors returns a copy of the recorded errors in arrival order.
func (s *ErrorSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// Len returns the number of recorded errors.
func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// Codes returns the error code of each recorded error.
func (s *ErrorSink) Codes() []trigger.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]trigger.ErrorCode, len(s.errs))
	for i, err := range s.errs {
		codes[i] = trigger.CodeOf(err)
	}
	return codes
}
