package rules

import (
	"strings"
)

// State is a JSON-like document: maps, slices, strings, numbers, bools
// and nil.
type State map[string]any

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return cloneMap(s)
}

// Get returns the value at a dotted path such as "order.total".
func (s State) Get(path string) (any, bool) {
	var cur any = map[string]any(s)
	for _, key := range splitPath(path) {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns v at a dotted path, creating intermediate maps. A non-map
// value in the way is replaced.
func (s State) Set(path string, v any) {
	keys := splitPath(path)
	m := map[string]any(s)
	for _, key := range keys[:len(keys)-1] {
		next, ok := asMap(m[key])
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Delete removes the value at a dotted path. Missing paths are ignored.
func (s State) Delete(path string) {
	keys := splitPath(path)
	m := map[string]any(s)
	for _, key := range keys[:len(keys)-1] {
		next, ok := asMap(m[key])
		if !ok {
			return
		}
		m = next
	}
	delete(m, keys[len(keys)-1])
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case State:
		return m, true
	}
	return nil, false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case State:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
