package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/config"
	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/harness"
	"github.com/roach88/tripwire/internal/logging"
	"github.com/roach88/tripwire/internal/metrics"
	"github.com/roach88/tripwire/internal/rules"
	"github.com/roach88/tripwire/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal     string
	MetricsAddr string
	RunID       string
}

// RunResult is the output of a single scenario run.
type RunResult struct {
	Scenario string                  `json:"scenario"`
	RunID    string                  `json:"run_id"`
	Pass     bool                    `json:"pass"`
	Trace    []harness.TraceEvent    `json:"trace"`
	Reported []harness.ReportedError `json:"reported,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
	State    rules.State             `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against its rules",
		Long: `Start an agent on the scenario's initial state with its rules
installed, apply each step, and wait for the agent to settle after each
one. Prints the fire trace and the final state.

With --journal the run is recorded to a SQLite file that "tripwire trace"
can read back. With --metrics-addr Prometheus metrics are served on
/metrics for the duration of the run.

Example:
  tripwire run ./scenarios/checkout.yaml
  tripwire run --journal ./runs.db --metrics-addr :9090 ./scenarios/checkout.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides journal.path)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "journal run id (default UUIDv7)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, logger, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Journal != "" {
		cfg.Journal.Path = opts.Journal
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	runID := opts.RunID
	if runID == "" {
		runID = engine.UUIDv7Generator{}.Generate()
	}
	runOpts := []harness.Option{
		harness.WithRunID(runID),
		harness.WithLogger(logger),
		harness.WithDefaults(cfg.Engine.TickInterval, cfg.Engine.SettleQuietTicks, cfg.Engine.SettleTimeout),
	}

	if cfg.Journal.Path != "" {
		logger.Info("opening journal", "path", cfg.Journal.Path)
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithHooks(collector.Hooks()))

		serveCtx, stopServe := context.WithCancel(ctx)
		done := make(chan struct{})
		defer func() {
			stopServe()
			<-done
		}()
		go func() {
			defer close(done)
			if err := metrics.Serve(serveCtx, cfg.Metrics.Addr, reg, logger); err != nil {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	logger.Info("running scenario", "scenario", scenario.Name, "run_id", runID, "rules", len(scenario.Rules))
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "run interrupted", err)
		}
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "fires", len(result.Trace))

	out := RunResult{
		Scenario: scenario.Name,
		RunID:    runID,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Reported: result.Reported,
		Errors:   result.Errors,
		State:    result.State,
	}
	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRunText(formatter, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRunText(f *OutputFormatter, r RunResult) {
	w := f.Writer
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Run: %s\n\n", r.RunID)

	for _, ev := range r.Trace {
		line := fmt.Sprintf("  [step %d] %s", ev.Step, ev.Rule)
		if ev.Removed {
			line += " (removed)"
		}
		fmt.Fprintln(w, line)
		for _, e := range ev.Errors {
			fmt.Fprintf(w, "    ! %s\n", e)
		}
	}
	if len(r.Trace) == 0 {
		fmt.Fprintln(w, "  (no rules fired)")
	}

	fmt.Fprintln(w)
	if r.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// loadConfig reads the config file and builds the logger. --verbose forces
// debug logging.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	return cfg, logger, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
