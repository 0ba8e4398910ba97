package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/rules"
)

// CycleWarning describes rules that can keep re-triggering each other
// through emitted events.
//
// Cycles are warnings rather than errors: a guard or a once rule may end
// the loop at runtime.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles finds event cycles among rs. A rule r has an edge to every
// rule listening on an event r emits. Each strongly connected component
// with more than one rule, or a rule that hears its own emission, is
// reported. Results are ordered by rule id.
//
// Cycles through state changes are not detected; whether two constraints
// can both hold is not decidable from the rules alone.
func AnalyzeCycles(rs []rules.Rule) []CycleWarning {
	warnings := []CycleWarning{}
	if len(rs) == 0 {
		return warnings
	}

	graph := buildEventGraph(rs)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// eventGraph maps rule id to the ids of rules it can trigger.
type eventGraph map[string][]string

func buildEventGraph(rs []rules.Rule) eventGraph {
	listeners := make(map[string][]string)
	for _, r := range rs {
		if r.Event != "" {
			event := engine.NormalizeEvent(r.Event)
			listeners[event] = append(listeners[event], r.ID)
		}
	}

	graph := make(eventGraph, len(rs))
	for _, r := range rs {
		edges := []string{}
		for _, step := range r.Do {
			if step.Emit != "" {
				edges = append(edges, listeners[engine.NormalizeEvent(step.Emit)]...)
			}
		}
		graph[r.ID] = edges
	}
	return graph
}

func hasSelfLoop(node string, graph eventGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC returns the strongly connected components of graph, visiting
// nodes in sorted order so results are stable.
func tarjanSCC(graph eventGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var connect func(string)
	connect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		slices.Sort(scc)
		sccs = append(sccs, scc)
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, seen := indices[n]; !seen {
			connect(n)
		}
	}
	return sccs
}

func cycleWarning(scc []string, graph eventGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("rule %s emits an event it listens on", id),
			Level:   "warning",
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential event cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// cyclePath walks edges inside scc from its first member until it returns
// to the start or runs out of unvisited members.
func cyclePath(scc []string, graph eventGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	for cur := start; ; {
		visited[cur] = true

		next := ""
		for _, w := range graph[cur] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		cur = next
	}
}
