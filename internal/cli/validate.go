package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Rules    int                        `json:"rules"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Watch bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <rules-path>",
		Short: "Validate rule files",
		Long: `Validate CUE rule files without running them.

Checks that every file parses, that each rule has a well-formed shape,
and that rule ids are unique across all files. Rules that can re-trigger
each other through emitted events are reported as warnings.

With --watch, validation reruns whenever a rule file changes until
interrupted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "revalidate when rule files change")

	return cmd
}

func runValidate(opts *ValidateOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	err := validateRules(formatter, rulesPath)
	if !opts.Watch || GetExitCode(err) == ExitCommandError {
		return err
	}

	_, logger, cfgErr := loadConfig(opts.RootOptions, cmd)
	if cfgErr != nil {
		return cfgErr
	}
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	fmt.Fprintf(formatter.ErrWriter, "Watching %s for changes\n", rulesPath)
	err = watchRules(ctx, rulesPath, logger, func() {
		_ = validateRules(formatter, rulesPath)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// validateRules loads and validates rulesPath once and reports the outcome.
func validateRules(formatter *OutputFormatter, rulesPath string) error {
	loadResult, loadErrors := LoadRules(rulesPath, LoadModeCollectAll)

	// Nothing to validate (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loadResult.Files), rulesPath)
	for _, r := range loadResult.Rules {
		formatter.VerboseLog("Validated rule: %s", r.ID)
	}

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   loadErr.Field,
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    loadErr.Line(),
			})
			continue
		}
		validationErrors = append(validationErrors, compiler.ValidationError{
			Field:   "load",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	}
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, ValidationResult{
		Valid:    true,
		Rules:    len(loadResult.Rules),
		Warnings: compiler.AnalyzeCycles(loadResult.Rules),
	})
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
	fmt.Fprintf(formatter.Writer, "✓ All rules valid (%d)\n", result.Rules)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		msg := fmt.Sprintf("validation failed with %d error(s)", len(errs))
		return formatter.Failure(ExitFailure, errs[0].Code, msg, ValidationResult{Valid: false, Errors: errs})
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		if err.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
