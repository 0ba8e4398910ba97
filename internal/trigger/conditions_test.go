package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counted struct {
	calls int
}

func (c *counted) returning(ok bool, err error) Predicate[int] {
	return func(context.Context, int) (bool, error) {
		c.calls++
		return ok, err
	}
}

func TestEvaluateConditions_EmptyPasses(t *testing.T) {
	assert.True(t, EvaluateConditions[int](context.Background(), nil, 0))
	assert.True(t, EvaluateConditions(context.Background(), []Predicate[int]{}, 0))
}

func TestEvaluateConditions_AllTrue(t *testing.T) {
	var a, b counted
	conds := []Predicate[int]{a.returning(true, nil), b.returning(true, nil)}

	assert.True(t, EvaluateConditions(context.Background(), conds, 0))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestEvaluateConditions_StopsAtFirstFalse(t *testing.T) {
	var a, b, c counted
	conds := []Predicate[int]{
		a.returning(true, nil),
		b.returning(false, nil),
		c.returning(true, nil),
	}

	assert.False(t, EvaluateConditions(context.Background(), conds, 0))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls, "conditions after the first false must not run")
}

func TestEvaluateConditions_ErrorCountsAsFalse(t *testing.T) {
	var a, b counted
	conds := []Predicate[int]{
		a.returning(true, errors.New("guard exploded")),
		b.returning(true, nil),
	}

	assert.False(t, EvaluateConditions(context.Background(), conds, 0))
	assert.Equal(t, 0, b.calls)
}

func TestEvaluateConditions_PanicCountsAsFalse(t *testing.T) {
	var after counted
	conds := []Predicate[int]{
		func(context.Context, int) (bool, error) { panic("guard panicked") },
		after.returning(true, nil),
	}

	assert.NotPanics(t, func() {
		assert.False(t, EvaluateConditions(context.Background(), conds, 0))
	})
	assert.Equal(t, 0, after.calls)
}

func TestEvaluateConditions_SeesState(t *testing.T) {
	conds := []Predicate[int]{If(func(n int) bool { return n > 3 })}

	assert.True(t, EvaluateConditions(context.Background(), conds, 4))
	assert.False(t, EvaluateConditions(context.Background(), conds, 2))
}
