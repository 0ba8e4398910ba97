// Package trigger defines reactive rules and the pieces that evaluate them.
//
// A Trigger pairs a check, ordered guard conditions and ordered actions:
//
//	when Check(state) and every Condition(state) then run each Action(state)
//
// The package provides the two evaluators the agent composes per trigger,
// with deliberately different failure semantics:
//
//   - EvaluateConditions short-circuits on the first false, erroring or
//     panicking condition and swallows the error.
//   - RunActions never short-circuits; each failure is collected and
//     returned so the agent can report it.
//
// Registry stores triggers in insertion order and tracks which triggers
// watch which events. Error is the uniform error value shared by the
// registry and the agent.
package trigger
