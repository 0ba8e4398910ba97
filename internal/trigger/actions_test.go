package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	n   int
	log []string
}

func TestRunActions_AllSucceed(t *testing.T) {
	b := &box{}
	actions := []Action[*box]{
		Do(func(b *box) { b.n++ }),
		Do(func(b *box) { b.n *= 10 }),
	}

	errs := RunActions(context.Background(), actions, b)

	assert.Empty(t, errs)
	assert.Equal(t, 10, b.n, "second action sees the first action's mutation")
}

func TestRunActions_EveryActionRunsDespiteFailures(t *testing.T) {
	b := &box{}
	boom := errors.New("boom")
	actions := []Action[*box]{
		func(_ context.Context, b *box) error { b.log = append(b.log, "a"); return boom },
		func(_ context.Context, b *box) error { b.log = append(b.log, "b"); return nil },
		func(_ context.Context, b *box) error { b.log = append(b.log, "c"); panic("kaput") },
		func(_ context.Context, b *box) error { b.log = append(b.log, "d"); return nil },
	}

	errs := RunActions(context.Background(), actions, b)

	assert.Equal(t, []string{"a", "b", "c", "d"}, b.log)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.EqualError(t, errors.Unwrap(errs[1]), "kaput")

	var ae *ActionError
	require.ErrorAs(t, errs[1], &ae)
	assert.Equal(t, 2, ae.Index)
}

func TestRunActions_NonErrorPanicIsStringified(t *testing.T) {
	actions := []Action[int]{
		func(context.Context, int) error { panic(404) },
	}

	errs := RunActions(context.Background(), actions, 0)

	require.Len(t, errs, 1)
	assert.Equal(t, "action 0: 404", errs[0].Error())
}

func TestRunActions_PartialMutationIsKept(t *testing.T) {
	b := &box{}
	actions := []Action[*box]{
		func(_ context.Context, b *box) error {
			b.n = 5
			return errors.New("failed after mutating")
		},
	}

	errs := RunActions(context.Background(), actions, b)

	assert.Len(t, errs, 1)
	assert.Equal(t, 5, b.n)
}

func TestRunActions_Empty(t *testing.T) {
	assert.Empty(t, RunActions[int](context.Background(), nil, 0))
}
