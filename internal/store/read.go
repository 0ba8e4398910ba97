package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Run is a journaled agent run.
type Run struct {
	ID        string
	Scenario  string
	StartedAt time.Time
}

// Firing is a journaled trigger fire.
type Firing struct {
	Tick      int64
	TriggerID string
	Errors    []string
	Removed   bool
	Duration  time.Duration
	FiredAt   time.Time
}

// Settle is a journaled settle request.
type Settle struct {
	QuietTicks int
	Timeout    time.Duration
	Outcome    string
	IdleTicks  int
	Waited     time.Duration
}

// Runs returns every run ordered by start time, then id.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, started_at
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &r.Scenario, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Firings returns the firings of a run in fire order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) Firings(ctx context.Context, runID string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, trigger_id, errors, removed, duration_ns, fired_at
		FROM firings
		WHERE run_id = ?
		ORDER BY tick ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		var errsJSON string
		var duration, firedAt int64
		if err := rows.Scan(&f.Tick, &f.TriggerID, &errsJSON, &f.Removed, &duration, &firedAt); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		if err := json.Unmarshal([]byte(errsJSON), &f.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal firing errors: %w", err)
		}
		f.Duration = time.Duration(duration)
		f.FiredAt = time.Unix(0, firedAt)
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// FiringCount returns how many times triggerID fired during a run.
func (s *Store) FiringCount(ctx context.Context, runID, triggerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM firings WHERE run_id = ? AND trigger_id = ?
	`, runID, triggerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count firings: %w", err)
	}
	return n, nil
}

// Settles returns the settle requests of a run in completion order.
func (s *Store) Settles(ctx context.Context, runID string) ([]Settle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quiet_ticks, timeout_ns, outcome, idle_ticks, waited_ns
		FROM settles
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query settles: %w", err)
	}
	defer rows.Close()

	settles := []Settle{}
	for rows.Next() {
		var st Settle
		var timeout, waited int64
		if err := rows.Scan(&st.QuietTicks, &timeout, &st.Outcome, &st.IdleTicks, &waited); err != nil {
			return nil, fmt.Errorf("scan settle: %w", err)
		}
		st.Timeout = time.Duration(timeout)
		st.Waited = time.Duration(waited)
		settles = append(settles, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settles: %w", err)
	}
	return settles, nil
}
