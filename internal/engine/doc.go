// Package engine implements the tripwire agent: a polling scheduler that
// owns one state container and a registry of triggers, and re-evaluates
// those triggers whenever the state changes or an event is emitted.
//
// ARCHITECTURE:
//
// Polling Loop:
// Start spawns one goroutine that wakes on a fixed tick interval. Each tick
// swaps a dirty flag off. When the flag was set the loop snapshots the
// registry and evaluates every trigger in insertion order:
// 1. Read the current state
// 2. Run the trigger's check (errors and panics go to the error handler)
// 3. Run its conditions in order; the first false, error or panic skips it
// 4. Wait the trigger's delay, abandoning the fire if the Start context
//    is cancelled; Stop waits for the delay
// 5. Run every action, reporting each failure individually
// 6. Mark the state dirty if any action ran and drop the trigger if it
//    fires only once
//
// A tick that evaluated nothing increments the idle counter; any tick that
// saw a change resets it. Settle waits for the idle counter to reach a
// threshold, which is how callers wait for cascades to quiesce.
//
// Events:
// Emitting an event bumps a per-name counter. An event trigger's check
// compares that counter with a watermark it took when it was created, so
// every trigger listening on a name sees each emission exactly once and
// never sees emissions older than itself.
//
// Actions run on the loop goroutine. A slow action delays every trigger
// behind it. Actions may change state through SetState or, for pointer
// state, by mutating it in place. The loop cannot tell the two apart, so a
// fire that ran actions always schedules another evaluation, and a
// repeating trigger whose check keeps passing keeps firing.
package engine
