package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of a rule set.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Rules lists CUE rule files. Relative paths resolve against the
	// scenario file's directory.
	Rules []string `yaml:"rules"`

	// State is the initial state.
	State map[string]any `yaml:"state,omitempty"`

	// Tick overrides the agent's tick interval, e.g. "1ms".
	Tick string `yaml:"tick,omitempty"`

	// QuietTicks overrides how many idle ticks count as settled.
	QuietTicks int `yaml:"quiet_ticks,omitempty"`

	// Timeout bounds each settle, e.g. "5s".
	Timeout string `yaml:"timeout,omitempty"`

	// Steps are applied in order, each followed by a settle.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step changes the agent from outside. Exactly one field is set.
type Step struct {
	// Set assigns values at dotted state paths.
	Set map[string]any `yaml:"set,omitempty"`

	// Delete removes dotted state paths.
	Delete []string `yaml:"delete,omitempty"`

	// Emit emits an event.
	Emit string `yaml:"emit,omitempty"`

	// Remove unregisters a rule by id.
	Remove string `yaml:"remove,omitempty"`
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Set != nil, s.Delete != nil, s.Emit != "", s.Remove != ""} {
		if set {
			n++
		}
	}
	return n
}

// Assertion checks one property of a finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Expect maps dotted state paths to values (state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent lists dotted state paths that must not exist (state).
	Absent []string `yaml:"absent,omitempty"`

	// Rule is a rule id (fired).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected first-fire order (fired_order).
	Rules []string `yaml:"rules,omitempty"`

	// Event is an event name (events).
	Event string `yaml:"event,omitempty"`

	// Code filters reported errors by code (errors).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of fires, emissions or errors.
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertState      = "state"
	AssertFired      = "fired"
	AssertFiredOrder = "fired_order"
	AssertEvents     = "events"
	AssertErrors     = "errors"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Rules {
		if !filepath.IsAbs(p) {
			scenario.Rules[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("rules list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Rules {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("rule file not found: %s", p)
		}
	}
	if _, err := parseDuration("tick", s.Tick); err != nil {
		return err
	}
	if _, err := parseDuration("timeout", s.Timeout); err != nil {
		return err
	}
	if s.QuietTicks < 0 {
		return fmt.Errorf("quiet_ticks must be non-negative")
	}

	for i, step := range s.Steps {
		if step.kinds() != 1 {
			return fmt.Errorf("steps[%d]: exactly one of set, delete, emit, remove is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertState:
		if len(a.Expect) == 0 && len(a.Absent) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for state", index)
		}
	case AssertFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired", index)
		}
	case AssertFiredOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for fired_order", index)
		}
	case AssertEvents:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for events", index)
		}
	case AssertErrors:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parseDuration parses an optional positive duration. Empty yields zero.
func parseDuration(field, d string) (time.Duration, error) {
	if d == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(d)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", field, d)
	}
	return v, nil
}
