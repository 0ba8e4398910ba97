package rules

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tripwire/internal/trigger"
)

// Matcher compiles CUE constraints and tests states against them.
// A cue.Context is not safe for concurrent use, so every operation on
// values it built holds mu.
type Matcher struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// NewMatcher returns a Matcher with its own CUE context.
func NewMatcher() *Matcher {
	return &Matcher{ctx: cuecontext.New()}
}

// Constraint is a compiled CUE constraint.
type Constraint struct {
	m   *Matcher
	src string
	v   cue.Value
}

// Compile parses src as a CUE expression.
func (m *Matcher) Compile(src string) (*Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile constraint %q: %w", src, err)
	}
	return &Constraint{m: m, src: src, v: v}, nil
}

// String returns the constraint source.
func (c *Constraint) String() string {
	return c.src
}

// Matches reports whether s satisfies the constraint. A state that cannot
// be encoded as CUE is an error; a conflict or a missing field is a
// non-match.
func (c *Constraint) Matches(s State) (bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	sv := c.m.ctx.Encode(map[string]any(s))
	if err := sv.Err(); err != nil {
		return false, fmt.Errorf("encode state: %w", err)
	}
	if err := c.v.Unify(sv).Validate(cue.Concrete(true)); err != nil {
		return false, nil
	}
	return true, nil
}

// Predicate adapts the constraint for use as a trigger check or guard.
func (c *Constraint) Predicate() trigger.Predicate[State] {
	return func(_ context.Context, s State) (bool, error) {
		return c.Matches(s)
	}
}
