package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tripwire/internal/rules"
)

// LoadFile compiles the rules of a single CUE file and validates them.
// Validation problems are joined into the returned error.
func LoadFile(path string) ([]rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	rs, err := CompileRules(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(rs); len(errs) > 0 {
		return nil, &LoadError{Path: path, Problems: errs}
	}
	return rs, nil
}

// LoadError reports rules that compiled but failed validation.
type LoadError struct {
	Path     string
	Problems []ValidationError
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %d invalid rule field(s)", e.Path, len(e.Problems))
	for _, p := range e.Problems {
		msg += "\n  " + p.Error()
	}
	return msg
}
