package compiler

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/tripwire/internal/rules"
)

// stepKinds lists the keys a step struct may carry.
var stepKinds = []string{"set", "incr", "delete", "emit", "fail"}

// CompileRules parses every rule under the top-level "rule" field in
// declaration order.
//
//	rule: "bump": {
//		match: "count: <3"
//		do: [{incr: count: 1}]
//	}
func CompileRules(v cue.Value) ([]rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ruleVal := v.LookupPath(cue.ParsePath("rule"))
	if !ruleVal.Exists() {
		return nil, nil
	}

	iter, err := ruleVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []rules.Rule
	for iter.Next() {
		r, err := CompileRule(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// CompileRule parses a CUE value into a Rule. The rule id is the value's
// last path label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: "bump": { ... }`)
//	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."bump"`)))
func CompileRule(v cue.Value) (*rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	r := &rules.Rule{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if r.Match, err = optionalString(v, "match"); err != nil {
		return nil, err
	}
	if r.Event, err = optionalString(v, "on"); err != nil {
		return nil, err
	}
	if r.Once, err = optionalBool(v, "once"); err != nil {
		return nil, err
	}
	if r.Delay, err = optionalDuration(v, "delay"); err != nil {
		return nil, err
	}
	if r.Timeout, err = optionalDuration(v, "timeout"); err != nil {
		return nil, err
	}
	if r.Guards, err = optionalStrings(v, "guards"); err != nil {
		return nil, err
	}

	retryVal := v.LookupPath(cue.ParsePath("retry"))
	if retryVal.Exists() {
		r.Retry, err = parseRetry(retryVal)
		if err != nil {
			return nil, err
		}
	}

	r.Do, err = parseSteps(v)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func parseRetry(v cue.Value) (*rules.RetryPolicy, error) {
	policy := &rules.RetryPolicy{}

	attemptsVal := v.LookupPath(cue.ParsePath("attempts"))
	if !attemptsVal.Exists() {
		return nil, &CompileError{
			Field:   "retry.attempts",
			Message: "retry requires 'attempts'",
			Pos:     v.Pos(),
		}
	}
	n, err := attemptsVal.Int64()
	if err != nil {
		return nil, &CompileError{
			Field:   "retry.attempts",
			Message: "attempts must be an integer",
			Pos:     attemptsVal.Pos(),
		}
	}
	policy.Attempts = int(n)

	if policy.Delay, err = optionalDuration(v, "delay"); err != nil {
		return nil, err
	}
	return policy, nil
}

func parseSteps(v cue.Value) ([]rules.Step, error) {
	doVal := v.LookupPath(cue.ParsePath("do"))
	if !doVal.Exists() {
		return nil, nil
	}

	list, err := doVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "do",
			Message: "do must be a list of steps",
			Pos:     doVal.Pos(),
		}
	}

	var steps []rules.Step
	for i := 0; list.Next(); i++ {
		step, err := parseStep(list.Value(), fmt.Sprintf("do[%d]", i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(v cue.Value, field string) (rules.Step, error) {
	var step rules.Step

	var kinds []string
	for _, k := range stepKinds {
		if v.LookupPath(cue.ParsePath(k)).Exists() {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return step, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("step must set exactly one of %s, found %d", strings.Join(stepKinds, ", "), len(kinds)),
			Pos:     v.Pos(),
		}
	}

	kind := kinds[0]
	val := v.LookupPath(cue.ParsePath(kind))
	field = field + "." + kind

	switch kind {
	case "set":
		iter, err := val.Fields()
		if err != nil {
			return step, formatCUEError(err)
		}
		step.Set = make(map[string]any)
		for iter.Next() {
			var x any
			if err := iter.Value().Decode(&x); err != nil {
				return step, &CompileError{
					Field:   field + "." + iter.Label(),
					Message: "value must be concrete",
					Pos:     iter.Value().Pos(),
				}
			}
			step.Set[iter.Label()] = x
		}
	case "incr":
		iter, err := val.Fields()
		if err != nil {
			return step, formatCUEError(err)
		}
		step.Incr = make(map[string]int)
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return step, &CompileError{
					Field:   field + "." + iter.Label(),
					Message: "increment must be an integer",
					Pos:     iter.Value().Pos(),
				}
			}
			step.Incr[iter.Label()] = int(n)
		}
	case "delete":
		paths, err := stringList(val, field)
		if err != nil {
			return step, err
		}
		step.Delete = paths
	case "emit", "fail":
		s, err := val.String()
		if err != nil {
			return step, &CompileError{
				Field:   field,
				Message: "must be a string",
				Pos:     val.Pos(),
			}
		}
		if kind == "emit" {
			step.Emit = s
		} else {
			step.Fail = s
		}
	}
	return step, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: "must be a string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{
			Field:   field,
			Message: "must be a bool",
			Pos:     fv.Pos(),
		}
	}
	return b, nil
}

func optionalDuration(v cue.Value, field string) (time.Duration, error) {
	s, err := optionalString(v, field)
	if err != nil || s == "" {
		return 0, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q", s),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return d, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	return stringList(fv, field)
}

func stringList(v cue.Value, field string) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a list of strings",
			Pos:     v.Pos(),
		}
	}

	var out []string
	for i := 0; list.Next(); i++ {
		s, err := list.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a string",
				Pos:     list.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}
