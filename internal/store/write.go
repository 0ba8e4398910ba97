package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tripwire/internal/engine"
)

// BeginRun inserts the run row that firings and settles reference.
// Uses ON CONFLICT(id) DO NOTHING so re-recording a run id is harmless.
func (s *Store) BeginRun(ctx context.Context, runID, scenario string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, scenario, startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordFire appends one firing. Action errors are stored as a JSON array
// of their messages.
func (s *Store) RecordFire(ctx context.Context, runID string, ev engine.FireEvent) error {
	errsJSON, err := marshalErrors(ev.Errors)
	if err != nil {
		return fmt.Errorf("record fire: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO firings (run_id, tick, trigger_id, errors, removed, duration_ns, fired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ev.Seq,
		ev.TriggerID,
		errsJSON,
		ev.Removed,
		ev.Duration.Nanoseconds(),
		ev.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record fire: %w", err)
	}
	return nil
}

// RecordSettle appends one finished settle request.
func (s *Store) RecordSettle(ctx context.Context, runID string, ev engine.SettleEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settles (run_id, quiet_ticks, timeout_ns, outcome, idle_ticks, waited_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		runID,
		ev.QuietTicks,
		ev.Timeout.Nanoseconds(),
		string(ev.Outcome),
		ev.IdleTicks,
		ev.Waited.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("record settle: %w", err)
	}
	return nil
}

func marshalErrors(errs []error) (string, error) {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}
