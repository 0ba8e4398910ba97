package state

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContainer_GetReturnsInitial(t *testing.T) {
	c := New(42)
	assert.Equal(t, 42, c.Get())
}

func TestContainer_SetReplacesAndNotifiesInOrder(t *testing.T) {
	c := New("a")

	var calls []string
	c.Subscribe(func(v string) { calls = append(calls, "first:"+v) })
	c.Subscribe(func(v string) { calls = append(calls, "second:"+v) })

	c.Set("b")

	assert.Equal(t, "b", c.Get())
	assert.Equal(t, []string{"first:b", "second:b"}, calls)
}

func TestContainer_UnsubscribeRemovesOnlyThatRegistration(t *testing.T) {
	c := New(0)

	var a, b int
	unsubA := c.Subscribe(func(int) { a++ })
	c.Subscribe(func(int) { b++ })

	c.Set(1)
	unsubA()
	unsubA() // idempotent
	c.Set(2)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, c.Subscribers())
}

func TestContainer_SameFunctionSubscribedTwice(t *testing.T) {
	c := New(0)

	count := 0
	fn := func(int) { count++ }
	unsub := c.Subscribe(fn)
	c.Subscribe(fn)

	unsub()
	c.Set(1)

	assert.Equal(t, 1, count, "only the second registration should remain")
}

func TestContainer_PanickingSubscriberIsIsolated(t *testing.T) {
	c := New(0, WithLogger(quietLogger()))

	var after int
	c.Subscribe(func(int) { panic("boom") })
	c.Subscribe(func(v int) { after = v })

	require.NotPanics(t, func() { c.Set(7) })
	assert.Equal(t, 7, after)
}

func TestContainer_SubscriberMayReadState(t *testing.T) {
	c := New(0)

	var seen int
	c.Subscribe(func(int) { seen = c.Get() })
	c.Set(5)

	assert.Equal(t, 5, seen)
}

func TestContainer_PointerValueSharedWithHolders(t *testing.T) {
	type counter struct{ n int }
	c := New(&counter{n: 1})

	c.Get().n++

	assert.Equal(t, 2, c.Get().n, "mutation through the reference is visible")
}

func TestContainer_ConcurrentSetAndSubscribe(t *testing.T) {
	c := New(0, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			c.Set(v)
		}(i)
		go func() {
			defer wg.Done()
			unsub := c.Subscribe(func(int) {})
			unsub()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, c.Subscribers())
}
