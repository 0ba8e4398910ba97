package rules

import (
	"fmt"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/trigger"
	"github.com/roach88/tripwire/internal/wrap"
)

// Install registers rs on a and returns the trigger ids in order. Either
// every rule is installed or, on error, none are left behind.
func Install(a *engine.Agent[State], m *Matcher, rs ...Rule) ([]string, error) {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		id, err := install(a, m, r)
		if err != nil {
			for _, done := range ids {
				_ = a.RemoveTrigger(done)
			}
			return nil, fmt.Errorf("install rule %q: %w", r.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func install(a *engine.Agent[State], m *Matcher, r Rule) (string, error) {
	match := trigger.Always[State]()
	if r.Match != "" {
		c, err := m.Compile(r.Match)
		if err != nil {
			return "", err
		}
		match = c.Predicate()
	}

	guards := make([]trigger.Predicate[State], 0, len(r.Guards)+1)
	if r.Event != "" && r.Match != "" {
		guards = append(guards, match)
	}
	for _, src := range r.Guards {
		c, err := m.Compile(src)
		if err != nil {
			return "", err
		}
		guards = append(guards, c.Predicate())
	}

	actions := make([]trigger.Action[State], 0, len(r.Do))
	for i, step := range r.Do {
		act, err := stepAction(a, step)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", i, err)
		}
		actions = append(actions, guardStep(act, r))
	}

	reaction := engine.Guard(guards...).Then(actions...).After(r.Delay)
	if r.ID != "" {
		reaction = reaction.Named(r.ID)
	}

	switch {
	case r.Event != "":
		return a.On(r.Event, reaction.Repeating(!r.Once))
	case r.Once:
		return a.Once(match, reaction)
	default:
		return a.When(match, reaction)
	}
}

func guardStep(act trigger.Action[State], r Rule) trigger.Action[State] {
	if r.Timeout > 0 {
		act = wrap.Timeout(act, r.Timeout)
	}
	if r.Retry != nil {
		cfg := wrap.DefaultRetryConfig()
		cfg.MaxAttempts = r.Retry.Attempts
		if r.Retry.Delay > 0 {
			cfg.InitialDelay = r.Retry.Delay
		}
		act = wrap.Retry(act, cfg)
	}
	return act
}
