package store

import (
	"context"
	"log/slog"

	"github.com/roach88/tripwire/internal/engine"
)

// Hooks returns engine hooks that journal every fire and settle under
// runID. Write failures are logged; they never reach the agent.
func (s *Store) Hooks(ctx context.Context, runID string, logger *slog.Logger) engine.Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return engine.Hooks{
		OnFire: func(ev engine.FireEvent) {
			if err := s.RecordFire(ctx, runID, ev); err != nil {
				logger.Error("journal write failed", "run", runID, "trigger", ev.TriggerID, "error", err)
			}
		},
		OnSettle: func(ev engine.SettleEvent) {
			if err := s.RecordSettle(ctx, runID, ev); err != nil {
				logger.Error("journal write failed", "run", runID, "outcome", string(ev.Outcome), "error", err)
			}
		},
	}
}
