package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/tripwire/internal/compiler"
	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/rules"
	"github.com/roach88/tripwire/internal/store"
	"github.com/roach88/tripwire/internal/trigger"
)

const (
	// DefaultTick is the scenario tick interval when none is given.
	DefaultTick = time.Millisecond

	// DefaultSettleTimeout bounds each settle when the scenario sets none.
	DefaultSettleTimeout = 5 * time.Second
)

// Option configures Run.
type Option func(*options)

type options struct {
	store  *store.Store
	runID  string
	logger *slog.Logger
	hooks  []engine.Hooks

	tick    time.Duration
	quiet   int
	timeout time.Duration
}

// WithStore journals the run to st instead of a fresh in-memory store.
// The caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithRunID sets the journal run id. Defaults to a UUIDv7.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithLogger sets the agent logger. Defaults to discarding.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks adds agent hooks, e.g. metrics.
func WithHooks(h engine.Hooks) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, h)
	}
}

// WithDefaults replaces the tick interval, quiet ticks and settle timeout
// used when the scenario leaves them unset. Non-positive values are
// ignored.
func WithDefaults(tick time.Duration, quietTicks int, timeout time.Duration) Option {
	return func(o *options) {
		if tick > 0 {
			o.tick = tick
		}
		if quietTicks > 0 {
			o.quiet = quietTicks
		}
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
//  1. Load and validate the rule files
//  2. Start an agent on the initial state with the rules installed
//  3. Settle, then apply each step and settle again
//  4. Stop the agent and read the fire trace back from the journal
//  5. Evaluate assertions
//
// Problems with the scenario itself (unloadable rules, a failing store,
// a cancelled ctx) are returned as errors. A settle timeout is recorded
// as a failed result and ends the step list early.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger:  slog.New(slog.DiscardHandler),
		tick:    DefaultTick,
		quiet:   engine.DefaultQuietTicks,
		timeout: DefaultSettleTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ruleSet, err := loadRules(scenario.Rules)
	if err != nil {
		return nil, err
	}

	tick, err := parseDuration("tick", scenario.Tick)
	if err != nil {
		return nil, err
	}
	if tick == 0 {
		tick = o.tick
	}
	timeout, err := parseDuration("timeout", scenario.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = o.timeout
	}
	quiet := scenario.QuietTicks
	if quiet == 0 {
		quiet = o.quiet
	}

	st := o.store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	runID := o.runID
	if runID == "" {
		runID = engine.UUIDv7Generator{}.Generate()
	}
	if err := st.BeginRun(ctx, runID, scenario.Name, time.Now()); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var reported []ReportedError
	onError := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, toReported(err))
	}

	a, err := engine.New(rules.State(scenario.State).Clone(),
		engine.WithTickInterval(tick),
		engine.WithLogger(o.logger),
		engine.WithErrorHandler(onError),
		engine.WithIDGenerator(engine.NewSequenceGenerator()),
		engine.WithHooks(st.Hooks(ctx, runID, o.logger)),
		engine.WithHooks(engine.ChainHooks(o.hooks...)),
	)
	if err != nil {
		return nil, err
	}
	if _, err := rules.Install(a, rules.NewMatcher(), ruleSet...); err != nil {
		return nil, err
	}

	if err := a.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if a.IsRunning() {
			_ = a.Stop()
		}
	}()

	result := NewResult()
	settleOpts := []engine.SettleOption{engine.WithQuietTicks(quiet), engine.WithSettleTimeout(timeout)}

	var boundaries []int64
	settle := func(step int) (bool, error) {
		err := a.Settle(ctx, settleOpts...)
		boundaries = append(boundaries, a.Ticks())
		switch {
		case err == nil:
			return true, nil
		case engine.IsSettleTimeout(err):
			result.AddError(fmt.Sprintf("step %d: %v", step, err))
			return false, nil
		default:
			return false, fmt.Errorf("step %d: %w", step, err)
		}
	}

	ok, err := settle(0)
	if err != nil {
		return nil, err
	}
	for i := 0; ok && i < len(scenario.Steps); i++ {
		if err := applyStep(a, scenario.Steps[i]); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", i+1, err))
		}
		if ok, err = settle(i + 1); err != nil {
			return nil, err
		}
	}

	if err := a.Stop(); err != nil {
		return nil, err
	}

	result.State = a.State()
	for _, as := range scenario.Assertions {
		if as.Type == AssertEvents {
			result.Events[as.Event] = a.EventCount(as.Event)
		}
	}

	firings, err := st.Firings(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, f := range firings {
		result.Trace = append(result.Trace, TraceEvent{
			Step:    stepFor(boundaries, f.Tick),
			Rule:    f.TriggerID,
			Errors:  f.Errors,
			Removed: f.Removed,
			Tick:    f.Tick,
		})
	}

	mu.Lock()
	result.Reported = reported
	mu.Unlock()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadRules(paths []string) ([]rules.Rule, error) {
	var out []rules.Rule
	for _, p := range paths {
		rs, err := compiler.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		out = append(out, rs...)
	}
	if errs := compiler.Validate(out); len(errs) > 0 {
		return nil, fmt.Errorf("load rules: %w", errs[0])
	}
	return out, nil
}

func applyStep(a *engine.Agent[rules.State], step Step) error {
	switch {
	case step.Set != nil:
		next := a.State().Clone()
		for _, path := range slices.Sorted(maps.Keys(step.Set)) {
			next.Set(path, step.Set[path])
		}
		a.SetState(next)
	case step.Delete != nil:
		next := a.State().Clone()
		for _, path := range step.Delete {
			next.Delete(path)
		}
		a.SetState(next)
	case step.Emit != "":
		a.EmitEvent(step.Emit)
	case step.Remove != "":
		return a.RemoveTrigger(step.Remove)
	}
	return nil
}

// stepFor returns the first step whose settle finished at or after tick.
func stepFor(boundaries []int64, tick int64) int {
	for i, b := range boundaries {
		if tick <= b {
			return i
		}
	}
	return max(len(boundaries)-1, 0)
}

func toReported(err error) ReportedError {
	r := ReportedError{
		Code:    string(trigger.CodeOf(err)),
		Message: err.Error(),
	}
	var te *trigger.Error
	if errors.As(err, &te) {
		r.Rule = te.TriggerID
	}
	return r
}
