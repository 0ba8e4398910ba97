package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/rules"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyRuleID       = "E101" // rule id is required
	ErrDuplicateRuleID   = "E102" // rule ids must be unique
	ErrReservedRuleID    = "E103" // rule id uses the generated-id prefix
	ErrNoSteps           = "E104" // rule must have at least one step
	ErrInvalidStep       = "E105" // step sets no operation
	ErrInvalidConstraint = "E106" // match or guard is not valid CUE
	ErrNegativeDuration  = "E107" // delay or timeout below zero
	ErrInvalidRetry      = "E108" // retry attempts must be positive
	ErrInvalidPath       = "E109" // state path has an empty segment
)

// ValidationError represents a rule validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled rules and returns every problem found.
func Validate(rs []rules.Rule) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	ctx := cuecontext.New()

	for i, r := range rs {
		field := fmt.Sprintf("rule[%d]", i)
		if r.ID != "" {
			field = fmt.Sprintf("rule.%s", r.ID)
		}
		add := func(sub, code, msg string) {
			f := field
			if sub != "" {
				f += "." + sub
			}
			errs = append(errs, ValidationError{Field: f, Message: msg, Code: code})
		}

		switch {
		case strings.TrimSpace(r.ID) == "":
			add("", ErrEmptyRuleID, "rule id is required")
		case seen[r.ID]:
			add("", ErrDuplicateRuleID, fmt.Sprintf("duplicate rule id: %q", r.ID))
		case engine.IsGeneratedID(r.ID):
			add("", ErrReservedRuleID, fmt.Sprintf("rule id must not start with %q", engine.GeneratedIDPrefix))
		}
		seen[r.ID] = true

		if r.Match != "" {
			if err := ctx.CompileString(r.Match).Err(); err != nil {
				add("match", ErrInvalidConstraint, err.Error())
			}
		}
		for j, g := range r.Guards {
			if err := ctx.CompileString(g).Err(); err != nil {
				add(fmt.Sprintf("guards[%d]", j), ErrInvalidConstraint, err.Error())
			}
		}

		if r.Delay < 0 {
			add("delay", ErrNegativeDuration, "delay must not be negative")
		}
		if r.Timeout < 0 {
			add("timeout", ErrNegativeDuration, "timeout must not be negative")
		}
		if r.Retry != nil && r.Retry.Attempts <= 0 {
			add("retry.attempts", ErrInvalidRetry, "attempts must be positive")
		}

		if len(r.Do) == 0 {
			add("do", ErrNoSteps, "at least one step is required")
		}
		for j, step := range r.Do {
			sub := fmt.Sprintf("do[%d]", j)
			if step.Kind() == "" {
				add(sub, ErrInvalidStep, "step sets no operation")
				continue
			}
			for _, p := range stepPaths(step) {
				if !validPath(p) {
					add(sub, ErrInvalidPath, fmt.Sprintf("invalid state path %q", p))
				}
			}
		}
	}

	return errs
}

func stepPaths(s rules.Step) []string {
	var paths []string
	for p := range s.Set {
		paths = append(paths, p)
	}
	for p := range s.Incr {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return append(paths, s.Delete...)
}

func validPath(p string) bool {
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}
