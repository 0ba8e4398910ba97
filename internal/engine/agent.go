package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tripwire/internal/state"
	"github.com/roach88/tripwire/internal/trigger"
)

// Status is the lifecycle position of an Agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Agent owns a state container and a trigger registry and runs the polling
// loop that fires triggers. A stopped agent may be started again.
//
// Thread-safety: every method is safe for concurrent use. Checks, conditions
// and actions run on the loop goroutine.
type Agent[S any] struct {
	state    *state.Container[S]
	triggers *trigger.Registry[S]
	ledger   *eventLedger
	ticks    *sequence
	ids      IDGenerator
	logger   *slog.Logger
	onError  func(error)
	hooks    Hooks
	interval time.Duration

	// changed is the dirty flag consumed by each tick.
	changed atomic.Bool

	mu      sync.Mutex
	status  Status
	idle    int
	waiters []*settleWaiter
	run     *run
}

// run holds the channels of one Start/Stop cycle.
type run struct {
	ctx  context.Context
	quit chan struct{}
	done chan struct{}
}

func (r *run) stopping() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

// New creates an idle agent holding initial.
func New[S any](initial S, opts ...Option) (*Agent[S], error) {
	cfg := config{
		logger:   slog.Default(),
		interval: DefaultTickInterval,
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Agent[S]{
		triggers: trigger.NewRegistry[S](),
		ledger:   newEventLedger(),
		ticks:    &sequence{},
		ids:      cfg.ids,
		logger:   cfg.logger,
		onError:  cfg.onError,
		hooks:    cfg.hooks,
		interval: cfg.interval,
		status:   StatusIdle,
	}
	a.state = state.New(initial, state.WithLogger(cfg.logger))
	a.state.Subscribe(func(S) { a.changed.Store(true) })

	for _, v := range cfg.triggers {
		t, ok := v.(trigger.Trigger[S])
		if !ok {
			return nil, &trigger.Error{
				Code:    trigger.ErrCodeInvalidTrigger,
				Message: fmt.Sprintf("trigger has state type %T, agent expects %T", v, trigger.Trigger[S]{}),
			}
		}
		if err := a.AddTrigger(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Start spawns the polling loop. The first tick evaluates every trigger even
// if nothing changed, so triggers already matching the initial state fire.
//
// ctx is passed to checks, conditions and actions. Cancelling it does not
// stop the loop; call Stop for that. A trigger waiting out its delay when
// ctx is cancelled skips its actions.
func (a *Agent[S]) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if a.status == StatusRunning {
		a.mu.Unlock()
		return newLifecycleError(trigger.ErrCodeAlreadyRunning, "agent is already running")
	}
	a.status = StatusRunning
	a.idle = 0
	a.ledger.reset()
	a.changed.Store(true)
	r := &run{ctx: ctx, quit: make(chan struct{}), done: make(chan struct{})}
	a.run = r
	a.mu.Unlock()

	a.logger.Info("agent started", "triggers", a.triggers.Len(), "tick_interval", a.interval)
	go a.loop(r)
	return nil
}

// Stop ends the polling loop, rejects pending Settle calls with
// ErrCodeAgentStopped and waits for the in-flight tick to finish, including
// a trigger delay it is waiting on. Triggers after the current one are
// skipped.
// Stop must not be called from inside an action.
func (a *Agent[S]) Stop() error {
	a.mu.Lock()
	if a.status != StatusRunning {
		a.mu.Unlock()
		return newLifecycleError(trigger.ErrCodeNotRunning, "agent is not running")
	}
	a.status = StatusStopped
	r := a.run
	waiters := a.waiters
	a.waiters = nil
	a.mu.Unlock()

	close(r.quit)
	for _, w := range waiters {
		w.finish(newLifecycleError(trigger.ErrCodeAgentStopped, "agent stopped before settling"))
	}
	<-r.done

	a.logger.Info("agent stopped", "ticks", a.ticks.last(), "triggers", a.triggers.Len())
	return nil
}

// IsRunning reports whether the loop is active.
func (a *Agent[S]) IsRunning() bool {
	return a.Status() == StatusRunning
}

// Status returns the lifecycle position.
func (a *Agent[S]) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IdleTicks returns the number of consecutive ticks that saw no change.
func (a *Agent[S]) IdleTicks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.idle
}

// Ticks returns the number of ticks run since the agent was created.
func (a *Agent[S]) Ticks() int64 {
	return a.ticks.last()
}

// State returns the current state value.
func (a *Agent[S]) State() S {
	return a.state.Get()
}

// SetState replaces the state and schedules re-evaluation.
func (a *Agent[S]) SetState(v S) {
	a.state.Set(v)
}

// Subscribe registers fn to observe every SetState. See state.Container.
func (a *Agent[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	return a.state.Subscribe(fn)
}

// AddTrigger registers t. The id must be non-empty, must not use
// GeneratedIDPrefix and must not already be registered. Adding a trigger
// does not by itself schedule an evaluation.
func (a *Agent[S]) AddTrigger(t trigger.Trigger[S]) error {
	if IsGeneratedID(t.ID) {
		return &trigger.Error{
			Code:      trigger.ErrCodeInvalidTrigger,
			Message:   "trigger id uses the reserved prefix " + GeneratedIDPrefix,
			TriggerID: t.ID,
		}
	}
	return a.addTrigger(t)
}

func (a *Agent[S]) addTrigger(t trigger.Trigger[S]) error {
	if t.ID == "" {
		return &trigger.Error{Code: trigger.ErrCodeInvalidTrigger, Message: "trigger id is empty"}
	}
	if t.Check == nil {
		return &trigger.Error{Code: trigger.ErrCodeInvalidTrigger, Message: "trigger has no check", TriggerID: t.ID}
	}
	if err := a.triggers.Add(t); err != nil {
		return err
	}
	a.logger.Debug("trigger added", "trigger", t.ID, "once", t.Once, "delay", t.Delay)
	return nil
}

// Trigger returns the trigger registered under id.
func (a *Agent[S]) Trigger(id string) (trigger.Trigger[S], bool) {
	return a.triggers.Get(id)
}

// Triggers returns a snapshot of all triggers in insertion order.
func (a *Agent[S]) Triggers() []trigger.Trigger[S] {
	return a.triggers.All()
}

// RemoveTrigger unregisters id and its event associations.
func (a *Agent[S]) RemoveTrigger(id string) error {
	if err := a.triggers.Remove(id); err != nil {
		return err
	}
	a.ledger.forget(id)
	a.logger.Debug("trigger removed", "trigger", id)
	return nil
}

// ClearTriggers unregisters every trigger and event association.
func (a *Agent[S]) ClearTriggers() {
	a.triggers.Clear()
	a.ledger.forgetAll()
	a.logger.Debug("triggers cleared")
}

// report forwards err to the error handler, or logs it when none is set.
// A panicking handler is logged and otherwise ignored.
func (a *Agent[S]) report(err error) {
	if a.onError == nil {
		a.logger.Error("trigger error", "code", string(trigger.CodeOf(err)), "error", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("error handler panicked", "error", fmt.Sprint(r), "reported", err)
		}
	}()
	a.onError(err)
}
