package compiler

import "github.com/vectis-systems/fluxc/internal/ir"

// componentGraph maps a component ID to the component IDs that must run
// after it within one settling-window close: a single topological order
// of steps consistent with the flow derivation graph.
type componentGraph map[string][]string

// buildComponentGraph derives the component dependency graph from the
// flow derivation graph: component A must precede component B if B
// consumes (directly or through a chain of derivations) a flow that
// component A produces. Persist() is the one combinator that legitimately
// reaches backward in time (it reads the previous firing's value), so an
// edge that only exists through a Persist node is not a dependency and is
// excluded here before cycle analysis runs.
func buildComponentGraph(spec ir.ServiceSpec) componentGraph {
	producer := make(map[string]string, len(spec.Flows))
	for _, c := range spec.Components {
		for _, out := range c.Outputs {
			producer[out.Flow] = c.ID
		}
	}

	flowByID := make(map[string]ir.FlowSpec, len(spec.Flows))
	for _, f := range spec.Flows {
		flowByID[f.ID] = f
	}

	// upstreamRaw resolves a flow to the set of raw/produced flow IDs it
	// transitively depends on, stopping at any Persist() boundary.
	var upstreamRaw func(flowID string, seen map[string]bool) []string
	upstreamRaw = func(flowID string, seen map[string]bool) []string {
		if seen[flowID] {
			return nil
		}
		seen[flowID] = true
		f, ok := flowByID[flowID]
		if !ok || f.Derivation == nil {
			return []string{flowID}
		}
		if f.Derivation.Kind == ir.CombPersist {
			return nil
		}
		var out []string
		for _, in := range f.Derivation.LeafInputs() {
			out = append(out, upstreamRaw(in, seen)...)
		}
		return out
	}

	graph := make(componentGraph, len(spec.Components))
	for _, c := range spec.Components {
		graph[c.ID] = []string{}
	}
	for _, c := range spec.Components {
		for _, in := range c.Inputs {
			for _, raw := range upstreamRaw(in.Flow, map[string]bool{}) {
				if upstream, ok := producer[raw]; ok && upstream != c.ID {
					graph[upstream] = appendUnique(graph[upstream], c.ID)
				}
			}
		}
	}
	return graph
}

func appendUnique(ss []string, v string) []string {
	for _, s := range ss {
		if s == v {
			return ss
		}
	}
	return append(ss, v)
}

// tarjanSCC finds strongly connected components. A multi-node SCC (or a
// self-loop) surfaces as a hard CycleError: a dataflow cycle outside
// Persist back-edges (already excluded by buildComponentGraph) cannot be
// scheduled, so planning fails rather than warns.
func tarjanSCC(graph componentGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
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
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func hasSelfLoop(node string, graph componentGraph) bool {
	for _, w := range graph[node] {
		if w == node {
			return true
		}
	}
	return false
}

// detectCycle returns the first cyclic component path found, or nil if the
// component graph is a DAG.
func detectCycle(graph componentGraph) []string {
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			// Tarjan pops an SCC in reverse discovery order; reverse it so
			// the path follows the graph's edges.
			path := make([]string, 0, len(scc)+1)
			for i := len(scc) - 1; i >= 0; i-- {
				path = append(path, scc[i])
			}
			path = append(path, path[0])
			return path
		}
	}
	return nil
}

// topoOrder performs a stable Kahn's-algorithm topological sort of the
// component graph, breaking ties by declaration order so that two
// independently-schedulable components keep the order they were declared
// in, matching the rest of the planner's determinism.
func topoOrder(declared []string, graph componentGraph) []string {
	indegree := make(map[string]int, len(declared))
	for _, id := range declared {
		indegree[id] = 0
	}
	for _, edges := range graph {
		for _, to := range edges {
			indegree[to]++
		}
	}

	var ready []string
	for _, id := range declared {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		// Pop the earliest-declared ready node.
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, to := range graph[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
		// Re-stabilize by declaration order among newly-ready nodes.
		ready = stableByDeclared(ready, declared)
	}
	return order
}

func stableByDeclared(ready, declared []string) []string {
	pos := make(map[string]int, len(declared))
	for i, id := range declared {
		pos[id] = i
	}
	sorted := make([]string, len(ready))
	copy(sorted, ready)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && pos[sorted[j]] < pos[sorted[j-1]]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
