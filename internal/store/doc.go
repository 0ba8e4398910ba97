// Package store provides a SQLite-backed journal of agent runs.
//
// The journal is append-only:
//   - Runs: one row per agent run, keyed by a caller-chosen id
//   - Firings: one row per trigger whose action phase ran
//   - Settles: one row per finished Settle call
//
// Reads order firings by (tick, id), so two runs of the same deterministic
// scenario produce the same sequence.
//
// Open passes the journal pragmas (WAL, synchronous=NORMAL, a 5s busy
// timeout, foreign keys) as go-sqlite3 connection parameters and upgrades
// older files through numbered migrations tracked in user_version. A file
// written by a newer tripwire is refused.
//
// Hooks adapts a Store to engine.Hooks so an agent records into it.
package store
