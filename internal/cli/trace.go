package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	RunID   string
	Rule    string // optional - filter to one rule
}

// TraceEvent is a single journaled fire.
type TraceEvent struct {
	Tick     int64    `json:"tick"`
	Rule     string   `json:"rule"`
	Errors   []string `json:"errors,omitempty"`
	Removed  bool     `json:"removed,omitempty"`
	Duration string   `json:"duration"`
}

// SettleRecord is a single journaled settle request.
type SettleRecord struct {
	Outcome    string `json:"outcome"`
	QuietTicks int    `json:"quiet_ticks"`
	IdleTicks  int    `json:"idle_ticks"`
	Waited     string `json:"waited"`
}

// RunSummary identifies a journaled run.
type RunSummary struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"started_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      RunSummary     `json:"run"`
	Timeline []TraceEvent   `json:"timeline"`
	Settles  []SettleRecord `json:"settles"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Fires        int `json:"fires"`
	FailedFires  int `json:"failed_fires"`
	RemovedRules int `json:"removed_rules"`
	Settles      int `json:"settles"`
	Timeouts     int `json:"timeouts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a run",
		Long: `Read a run journal written by "tripwire run --journal".

Without --run, lists the journaled runs. With --run, shows which rules
fired on which tick, the settle requests and their outcomes, and a
summary.

Examples:
  tripwire trace --journal ./runs.db
  tripwire trace --journal ./runs.db --run 0192f3c1-...
  tripwire trace --journal ./runs.db --run 0192f3c1-... --rule charge --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "filter to a single rule id")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening creates the file, so check first.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	runs, err := st.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, RunSummary{ID: r.ID, Scenario: r.Scenario, StartedAt: r.StartedAt})
	}

	if opts.RunID == "" {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, summaries)
		}
		return outputRunsText(cmd.OutOrStdout(), summaries)
	}

	idx := slices.IndexFunc(summaries, func(r RunSummary) bool { return r.ID == opts.RunID })
	if idx < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}

	firings, err := st.Firings(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read firings", err)
	}
	settles, err := st.Settles(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settles", err)
	}

	result := TraceResult{
		Run:      summaries[idx],
		Timeline: buildTimeline(firings, opts.Rule),
		Settles:  make([]SettleRecord, 0, len(settles)),
	}
	for _, s := range settles {
		result.Settles = append(result.Settles, SettleRecord{
			Outcome:    s.Outcome,
			QuietTicks: s.QuietTicks,
			IdleTicks:  s.IdleTicks,
			Waited:     s.Waited.String(),
		})
		if s.Outcome == string(engine.SettleOutcomeTimeout) {
			result.Stats.Timeouts++
		}
	}
	result.Stats.Settles = len(settles)
	for _, ev := range result.Timeline {
		result.Stats.Fires++
		if len(ev.Errors) > 0 {
			result.Stats.FailedFires++
		}
		if ev.Removed {
			result.Stats.RemovedRules++
		}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTimeline converts journaled firings to timeline events, keeping only
// ruleFilter's when it is set.
func buildTimeline(firings []store.Firing, ruleFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, f := range firings {
		if ruleFilter != "" && f.TriggerID != ruleFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Tick:     f.Tick,
			Rule:     f.TriggerID,
			Errors:   f.Errors,
			Removed:  f.Removed,
			Duration: f.Duration.String(),
		})
	}
	return timeline
}

// outputTraceJSON outputs a trace or run list as JSON.
func outputTraceJSON(cmd *cobra.Command, data any) error {
	return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: data})
}

func outputRunsText(w io.Writer, runs []RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s\n", r.StartedAt.Format(time.RFC3339), r.ID, r.Scenario)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Scenario: %s\n", result.Run.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no fires)")
	}
	for _, ev := range result.Timeline {
		line := fmt.Sprintf("  [%d] %s", ev.Tick, ev.Rule)
		if ev.Removed {
			line += " (removed)"
		}
		if verbose {
			line += " " + ev.Duration
		}
		fmt.Fprintln(w, line)
		for _, e := range ev.Errors {
			fmt.Fprintf(w, "       ! %s\n", e)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Settles ===")
	if len(result.Settles) == 0 {
		fmt.Fprintln(w, "  (no settles)")
	}
	for i, s := range result.Settles {
		fmt.Fprintf(w, "  #%d %s after %s (%d/%d quiet ticks)\n", i+1, s.Outcome, s.Waited, s.IdleTicks, s.QuietTicks)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Fires:         %d\n", result.Stats.Fires)
	fmt.Fprintf(w, "  Failed Fires:  %d\n", result.Stats.FailedFires)
	fmt.Fprintf(w, "  Removed Rules: %d\n", result.Stats.RemovedRules)
	fmt.Fprintf(w, "  Settles:       %d\n", result.Stats.Settles)
	fmt.Fprintf(w, "  Timeouts:      %d\n", result.Stats.Timeouts)

	return nil
}
