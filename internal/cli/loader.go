package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tripwire/internal/compiler"
	"github.com/roach88/tripwire/internal/rules"
)

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first file that fails.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll loads every file before returning.
	LoadModeCollectAll
)

// LoadResult contains the rules loaded from a file or directory.
type LoadResult struct {
	Rules []rules.Rule
	Files []string // CUE files read, in walk order
}

// LoadError represents an error that occurred during rule loading.
type LoadError struct {
	Code    string
	Message string
	Field   string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadRules loads the CUE rule files at path, which may be a single file or
// a directory searched recursively. Rules from every file are validated
// together so duplicate ids across files are reported.
//
// A nil result means nothing could be loaded at all.
func LoadRules(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
	}

	result := &LoadResult{Files: files}
	var errs []error
	for _, f := range files {
		rs, err := compiler.LoadFile(f)
		if err != nil {
			errs = append(errs, convertLoadError(err, f)...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Rules = append(result.Rules, rs...)
	}

	// Per-file validation already ran; this catches cross-file problems.
	if len(errs) == 0 {
		for _, v := range compiler.Validate(result.Rules) {
			errs = append(errs, &LoadError{Code: v.Code, Field: v.Field, Message: v.Message})
		}
	}

	if len(result.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoRules, Message: "no rules found"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertLoadError turns a compiler error into one LoadError per problem.
func convertLoadError(err error, path string) []error {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		out := make([]error, 0, len(loadErr.Problems))
		for _, p := range loadErr.Problems {
			out = append(out, &LoadError{
				Code:    p.Code,
				Field:   p.Field,
				Message: fmt.Sprintf("%s: %s", path, p.Message),
			})
		}
		return out
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return []error{&LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}}
	}

	return []error{&LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", path, err),
	}}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeSyntax      = "E004" // CUE does not parse or unify
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoRules     = "E006" // Files hold no rules
	ErrCodeWriteFailed = "E007" // File write error

	// Rule shape errors reported by the compiler before validation.
	ErrCodeInvalidStep  = compiler.ErrInvalidStep
	ErrCodeInvalidRetry = compiler.ErrInvalidRetry
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeSyntax
	case field == "do" || strings.HasPrefix(field, "do["):
		return ErrCodeInvalidStep
	case strings.HasPrefix(field, "retry"):
		return ErrCodeInvalidRetry
	default:
		return ErrCodeGeneric
	}
}
