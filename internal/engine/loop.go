package engine

import (
	"context"
	"time"

	"github.com/roach88/tripwire/internal/trigger"
)

// loop runs ticks until quit is closed. The interval is measured from the
// end of one tick to the start of the next.
func (a *Agent[S]) loop(r *run) {
	defer close(r.done)

	timer := time.NewTimer(a.interval)
	defer timer.Stop()

	for {
		if r.stopping() {
			return
		}
		a.safeTick(r)

		timer.Reset(a.interval)
		select {
		case <-r.quit:
			return
		case <-timer.C:
		}
	}
}

func (a *Agent[S]) safeTick(r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			a.report(&trigger.Error{
				Code:    trigger.ErrCodeLoopFailed,
				Message: "scheduler tick failed",
				Err:     trigger.Normalize(rec),
			})
		}
	}()
	a.tick(r)
}

func (a *Agent[S]) tick(r *run) {
	start := time.Now()
	seq := a.ticks.next()
	changed := a.consumeChange()

	var evaluated, fired int
	if changed {
		for _, t := range a.triggers.All() {
			if r.stopping() {
				break
			}
			// Removed by an earlier action in this tick.
			if !a.triggers.Has(t.ID) {
				continue
			}
			evaluated++
			if a.evaluate(r, seq, t) {
				fired++
			}
		}
	}

	idle := a.recordTick(changed)
	callHook(a.logger, "tick", a.hooks.OnTick, TickEvent{
		Seq:       seq,
		Changed:   changed,
		Evaluated: evaluated,
		Fired:     fired,
		IdleTicks: idle,
		Duration:  time.Since(start),
	})
}

// consumeChange clears the dirty flag and, if it was set, zeroes the idle
// counter. Both happen under mu so Settle never pairs a consumed flag with a
// stale idle count.
func (a *Agent[S]) consumeChange() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := a.changed.Swap(false)
	if changed {
		a.idle = 0
	}
	return changed
}

// recordTick increments the idle counter after an unchanged tick and
// resolves settle waiters whose threshold has been reached. It returns the
// idle count.
func (a *Agent[S]) recordTick(changed bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if changed {
		return a.idle
	}
	a.idle++

	kept := a.waiters[:0]
	for _, w := range a.waiters {
		if a.idle >= w.quietTicks {
			w.finish(nil)
			continue
		}
		kept = append(kept, w)
	}
	clear(a.waiters[len(kept):])
	a.waiters = kept
	return a.idle
}

// evaluate runs one trigger against the current state and reports whether
// its action phase ran.
func (a *Agent[S]) evaluate(r *run, seq int64, t trigger.Trigger[S]) bool {
	defer func() {
		if rec := recover(); rec != nil {
			a.report(&trigger.Error{
				Code:      trigger.ErrCodeLoopFailed,
				Message:   "trigger evaluation failed",
				TriggerID: t.ID,
				Err:       trigger.Normalize(rec),
			})
		}
	}()

	s := a.state.Get()

	ok, err := check(r.ctx, t.Check, s)
	if err != nil {
		a.report(&trigger.Error{Code: trigger.ErrCodeCheckFailed, TriggerID: t.ID, Err: err})
		return false
	}
	if !ok {
		return false
	}
	if !trigger.EvaluateConditions(r.ctx, t.Conditions, s) {
		return false
	}

	if t.Delay > 0 {
		delay := time.NewTimer(t.Delay)
		select {
		case <-delay.C:
		case <-r.ctx.Done():
			delay.Stop()
			a.logger.Debug("delayed trigger cancelled", "trigger", t.ID, "delay", t.Delay)
			return false
		}
	}

	started := time.Now()
	errs := trigger.RunActions(r.ctx, t.Actions, s)
	// Actions may mutate pointer-shaped state in place without SetState,
	// so any action that ran counts as a change.
	if len(t.Actions) > 0 {
		a.changed.Store(true)
	}
	for _, err := range errs {
		a.report(&trigger.Error{Code: trigger.ErrCodeActionFailed, TriggerID: t.ID, Err: err})
	}

	removed := false
	if !t.Repeat() {
		// Another action may already have removed it.
		if err := a.triggers.Remove(t.ID); err == nil {
			a.ledger.forget(t.ID)
			removed = true
		}
	}

	a.logger.Debug("trigger fired", "trigger", t.ID, "tick", seq, "errors", len(errs), "removed", removed)
	callHook(a.logger, "fire", a.hooks.OnFire, FireEvent{
		Seq:       seq,
		TriggerID: t.ID,
		Errors:    errs,
		Removed:   removed,
		Duration:  time.Since(started),
		At:        started,
	})
	return true
}

// check runs a trigger check, converting a panic into an error.
func check[S any](ctx context.Context, p trigger.Predicate[S], s S) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, trigger.Normalize(r)
		}
	}()
	return p(ctx, s)
}
