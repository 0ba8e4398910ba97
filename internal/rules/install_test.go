package rules

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/testutil"
	"github.com/roach88/tripwire/internal/trigger"
)

func newAgent(t *testing.T, initial State, opts ...engine.Option) (*engine.Agent[State], *testutil.ErrorSink) {
	t.Helper()

	sink := &testutil.ErrorSink{}
	base := []engine.Option{
		engine.WithTickInterval(time.Millisecond),
		engine.WithErrorHandler(sink.Handle),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
	}
	a, err := engine.New(initial, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if a.IsRunning() {
			_ = a.Stop()
		}
	})
	return a, sink
}

func runToSettle(t *testing.T, a *engine.Agent[State]) {
	t.Helper()
	if !a.IsRunning() {
		require.NoError(t, a.Start(context.Background()))
	}
	require.NoError(t, a.Settle(context.Background(), engine.WithSettleTimeout(5*time.Second)))
}

func TestInstall_Cascade(t *testing.T) {
	a, sink := newAgent(t, State{"count": 0})

	ids, err := Install(a, NewMatcher(),
		Rule{ID: "bump", Match: "count: <3", Do: []Step{{Incr: map[string]int{"count": 1}}}},
		Rule{ID: "announce", Match: "count: 3", Once: true, Do: []Step{{Emit: "done"}}},
		Rule{ID: "finish", Event: "done", Do: []Step{{Set: map[string]any{"finished": true}}}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"bump", "announce", "finish"}, ids)

	runToSettle(t, a)

	assert.Equal(t, State{"count": 3, "finished": true}, a.State())
	assert.Zero(t, sink.Len())

	_, ok := a.Trigger("announce")
	assert.False(t, ok, "once rules are removed after firing")
}

func TestInstall_StepsSeeEarlierSteps(t *testing.T) {
	a, _ := newAgent(t, State{})

	_, err := Install(a, NewMatcher(), Rule{
		ID:   "setup",
		Once: true,
		Do: []Step{
			{Set: map[string]any{"order.total": 10}},
			{Incr: map[string]int{"order.total": 5}},
			{Delete: []string{"order.draft"}},
		},
	})
	require.NoError(t, err)

	runToSettle(t, a)

	v, ok := a.State().Get("order.total")
	require.True(t, ok)
	assert.Equal(t, 15, v)
}

func TestInstall_EventRuleMatchActsAsGuard(t *testing.T) {
	a, _ := newAgent(t, State{"armed": false})

	_, err := Install(a, NewMatcher(), Rule{
		ID:    "alarm",
		Event: "motion",
		Match: "armed: true",
		Do:    []Step{{Incr: map[string]int{"alarms": 1}}},
	})
	require.NoError(t, err)

	runToSettle(t, a)
	a.EmitEvent("motion")
	runToSettle(t, a)
	_, ok := a.State().Get("alarms")
	assert.False(t, ok)

	a.SetState(State{"armed": true})
	a.EmitEvent("motion")
	runToSettle(t, a)
	v, _ := a.State().Get("alarms")
	assert.Equal(t, 1, v)
}

func TestInstall_FailingStepIsReportedAndOthersRun(t *testing.T) {
	a, sink := newAgent(t, State{})

	_, err := Install(a, NewMatcher(), Rule{
		ID:   "partial",
		Once: true,
		Do: []Step{
			{Fail: "boom"},
			{Set: map[string]any{"after": true}},
		},
	})
	require.NoError(t, err)

	runToSettle(t, a)

	v, _ := a.State().Get("after")
	assert.Equal(t, true, v)

	require.Equal(t, 1, sink.Len())
	err = sink.Errors()[0]
	assert.True(t, trigger.HasCode(err, trigger.ErrCodeActionFailed))
	assert.True(t, errors.Is(err, ErrStepFailed))
}

func TestInstall_RetriedStepReportsOnce(t *testing.T) {
	a, sink := newAgent(t, State{})

	_, err := Install(a, NewMatcher(), Rule{
		ID:      "flaky",
		Once:    true,
		Retry:   &RetryPolicy{Attempts: 3, Delay: time.Millisecond},
		Timeout: time.Second,
		Do:      []Step{{Fail: "still down"}},
	})
	require.NoError(t, err)

	runToSettle(t, a)

	require.Equal(t, 1, sink.Len())
	assert.Equal(t, []trigger.ErrorCode{trigger.ErrCodeActionFailed}, sink.Codes())
}

func TestInstall_RollsBackOnError(t *testing.T) {
	a, _ := newAgent(t, State{})

	_, err := Install(a, NewMatcher(),
		Rule{ID: "good", Match: "x: 1"},
		Rule{ID: "bad", Match: "x: >"},
	)
	require.Error(t, err)
	assert.Empty(t, a.Triggers())
}

func TestInstall_IncrOnNonNumber(t *testing.T) {
	a, sink := newAgent(t, State{"count": "many"})

	_, err := Install(a, NewMatcher(), Rule{ID: "bump", Once: true, Do: []Step{{Incr: map[string]int{"count": 1}}}})
	require.NoError(t, err)

	runToSettle(t, a)
	assert.Equal(t, 1, sink.Len())
	assert.Equal(t, "many", a.State()["count"])
}

func TestAddInt(t *testing.T) {
	n, err := addInt(nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = addInt(int64(3), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = addInt(4.0, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = addInt(0.5, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, n)
}

func TestInstall_RepeatingRuleKeepsFiringWhileMatched(t *testing.T) {
	var fired testutil.Counter
	a, _ := newAgent(t, State{"ready": true},
		engine.WithHooks(engine.Hooks{OnFire: func(engine.FireEvent) { fired.Inc() }}))

	_, err := Install(a, NewMatcher(),
		Rule{ID: "mark", Match: "ready: true", Do: []Step{{Set: map[string]any{"done": true}}}},
	)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	err = a.Settle(context.Background(), engine.WithSettleTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.True(t, engine.IsSettleTimeout(err))
	assert.Greater(t, fired.Load(), 1, "an unchanged state still re-arms the rule")
}

func TestInstall_SelfLimitingRuleSettles(t *testing.T) {
	a, _ := newAgent(t, State{"ready": true, "done": false})

	_, err := Install(a, NewMatcher(),
		Rule{ID: "mark", Match: "ready: true, done: false", Do: []Step{{Set: map[string]any{"done": true}}}},
	)
	require.NoError(t, err)

	runToSettle(t, a)
	assert.Equal(t, State{"ready": true, "done": true}, a.State())
}
