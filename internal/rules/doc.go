// Package rules runs declarative rule sets on an agent whose state is a
// JSON-like document.
//
// A Rule pairs a CUE constraint with a list of steps. The rule matches when
// the constraint unifies with the current state and the result is concrete:
//
//	match: "count: >0 & <3"   // state has a count between 1 and 2
//	match: "status: \"open\"" // state.status is the string "open"
//
// A constraint naming a field the state lacks never matches. Event rules
// fire on emissions and treat their match as an extra guard.
//
// Steps never mutate a published State. Each step clones the latest state,
// applies its change and publishes the clone with SetState, so readers on
// other goroutines never observe a half-applied step.
package rules
