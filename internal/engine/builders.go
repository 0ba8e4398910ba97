package engine

import (
	"context"
	"time"

	"github.com/roach88/tripwire/internal/trigger"
)

// Reaction is the second half of a When, Once or On registration: optional
// guards, the actions to run and registration settings. The zero value runs
// nothing and repeats.
type Reaction[S any] struct {
	id         string
	conditions []trigger.Predicate[S]
	actions    []trigger.Action[S]
	once       bool
	delay      time.Duration
}

// Then starts a reaction with actions and no guards.
func Then[S any](actions ...trigger.Action[S]) Reaction[S] {
	return Reaction[S]{actions: actions}
}

// Guard starts a reaction whose actions run only when every condition holds.
func Guard[S any](conditions ...trigger.Predicate[S]) Reaction[S] {
	return Reaction[S]{conditions: conditions}
}

// Then appends actions.
func (r Reaction[S]) Then(actions ...trigger.Action[S]) Reaction[S] {
	r.actions = append(r.actions[:len(r.actions):len(r.actions)], actions...)
	return r
}

// Named registers the reaction under id instead of a generated one.
func (r Reaction[S]) Named(id string) Reaction[S] {
	r.id = id
	return r
}

// After delays the action phase by d once the check and guards pass.
func (r Reaction[S]) After(d time.Duration) Reaction[S] {
	r.delay = d
	return r
}

// Repeating controls whether an On reaction keeps firing after the first
// emission. When and Once ignore it.
func (r Reaction[S]) Repeating(repeat bool) Reaction[S] {
	r.once = !repeat
	return r
}

func (r Reaction[S]) build(id string, check trigger.Predicate[S], once bool) trigger.Trigger[S] {
	return trigger.Trigger[S]{
		ID:         id,
		Check:      check,
		Conditions: r.conditions,
		Actions:    r.actions,
		Once:       once,
		Delay:      r.delay,
	}
}

func (a *Agent[S]) reactionID(r Reaction[S], kind string) string {
	if r.id != "" {
		return r.id
	}
	return generatedID(a.ids, kind)
}

func (a *Agent[S]) addReaction(r Reaction[S], t trigger.Trigger[S]) error {
	if r.id != "" {
		return a.AddTrigger(t)
	}
	return a.addTrigger(t)
}

// When registers a repeating trigger that fires whenever check passes on an
// evaluated tick. It returns the trigger id.
func (a *Agent[S]) When(check trigger.Predicate[S], r Reaction[S]) (string, error) {
	id := a.reactionID(r, "when")
	if err := a.addReaction(r, r.build(id, check, false)); err != nil {
		return "", err
	}
	return id, nil
}

// Once registers a trigger that removes itself after its first fire.
func (a *Agent[S]) Once(check trigger.Predicate[S], r Reaction[S]) (string, error) {
	id := a.reactionID(r, "once")
	if err := a.addReaction(r, r.build(id, check, true)); err != nil {
		return "", err
	}
	return id, nil
}

// On registers a trigger that fires once per emission of event made after
// registration. It repeats unless the reaction says otherwise.
func (a *Agent[S]) On(event string, r Reaction[S]) (string, error) {
	event = NormalizeEvent(event)
	id := a.reactionID(r, "on")
	check := func(context.Context, S) (bool, error) {
		return a.ledger.observe(event, id), nil
	}

	err := a.ledger.register(event, id, func() error {
		if err := a.addReaction(r, r.build(id, check, r.once)); err != nil {
			return err
		}
		// Inside the ledger lock, so the trigger cannot fire and be
		// removed before its association exists.
		a.triggers.Associate(event, id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
