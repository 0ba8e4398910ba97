package metrics

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/engine"
)

func TestCollector_Hooks(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	h := c.Hooks()

	h.OnTick(engine.TickEvent{Changed: true, Duration: time.Millisecond})
	h.OnTick(engine.TickEvent{Changed: false, IdleTicks: 1})
	h.OnTick(engine.TickEvent{Changed: false, IdleTicks: 2})
	h.OnFire(engine.FireEvent{TriggerID: "a"})
	h.OnFire(engine.FireEvent{TriggerID: "a", Errors: []error{errors.New("x"), errors.New("y")}})
	h.OnSettle(engine.SettleEvent{Outcome: engine.SettleOutcomeTimeout})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ticks.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticks.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.idle))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.fired.WithLabelValues("a")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actionErrors.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.settles.WithLabelValues("timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tickDuration))
}

func TestCollector_GeneratedIDsShareLabel(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	h := c.Hooks()

	h.OnFire(engine.FireEvent{TriggerID: "__auto:when:0192f5a4-0000-7000-8000-000000000001"})
	h.OnFire(engine.FireEvent{TriggerID: "__auto:when:0192f5a4-0000-7000-8000-000000000002"})
	h.OnFire(engine.FireEvent{TriggerID: "__auto:on:0192f5a4-0000-7000-8000-000000000003", Errors: []error{errors.New("x")}})
	h.OnFire(engine.FireEvent{TriggerID: "named"})

	assert.Equal(t, 3, testutil.CollectAndCount(c.fired))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.fired.WithLabelValues("__auto:when")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fired.WithLabelValues("__auto:on")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actionErrors.WithLabelValues("__auto:on")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fired.WithLabelValues("named")))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestCollector_WithAgent(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	a, err := engine.New(1,
		engine.WithTickInterval(time.Millisecond),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithHooks(c.Hooks()),
	)
	require.NoError(t, err)
	_, err = a.Once(func(_ context.Context, n int) (bool, error) { return n > 0, nil }, engine.Then[int]().Named("hello"))
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Settle(context.Background(), engine.WithSettleTimeout(5*time.Second)))
	require.NoError(t, a.Stop())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fired.WithLabelValues("hello")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.settles.WithLabelValues("settled")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(c.ticks.WithLabelValues("false")), 2.0)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry(), slog.New(slog.DiscardHandler))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
