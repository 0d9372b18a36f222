package pipeline

import (
	"fmt"
	"slices"
	"sort"
)

// graph is the dependency structure built from a definition set. An edge runs
// from a dependency to each stage that declares it.
type graph struct {
	defs  map[string]Definition
	names []string // sorted for deterministic traversal
}

// buildGraph validates the definition set and constructs the adjacency
// structure. Declaration order carries no meaning.
func buildGraph(defs []Definition) (*graph, error) {
	if len(defs) == 0 {
		return nil, ErrNoStages
	}

	g := &graph{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if def.Stage == nil {
			return nil, fmt.Errorf("%w: %q", ErrNilStage, def.Name)
		}
		if _, dup := g.defs[def.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, def.Name)
		}
		g.defs[def.Name] = def
		g.names = append(g.names, def.Name)
	}
	sort.Strings(g.names)

	for _, def := range defs {
		for _, dep := range def.DependsOn {
			if _, ok := g.defs[dep]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency, def.Name, dep)
			}
		}
	}

	return g, nil
}

// detectCycle runs a depth-first search with white/grey/black marking over
// dependency edges. On a back edge it reconstructs the offending cycle path.
func (g *graph) detectCycle() *CycleError {
	const (
		white = iota // unvisited
		grey         // on the current DFS path
		black        // fully explored
	)

	colors := make(map[string]int, len(g.names))
	var stack []string

	var visit func(name string) *CycleError
	visit = func(name string) *CycleError {
		colors[name] = grey
		stack = append(stack, name)

		deps := slices.Clone(g.defs[name].DependsOn)
		sort.Strings(deps)
		for _, dep := range deps {
			switch colors[dep] {
			case grey:
				// Back edge: slice the stack from the first occurrence of dep
				// to get the cycle in dependency order.
				start := slices.Index(stack, dep)
				cycle := append(slices.Clone(stack[start:]), dep)
				return &CycleError{Cycle: cycle}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[name] = black
		return nil
	}

	for _, name := range g.names {
		if colors[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// levels groups stages into dependency barriers: every stage in level N has
// all of its dependencies in levels < N. Within a level names are sorted, so
// the same definition set always yields the same order.
func (g *graph) levels() [][]string {
	depth := make(map[string]int, len(g.names))

	var resolve func(name string) int
	resolve = func(name string) int {
		if d, ok := depth[name]; ok {
			return d
		}
		d := 0
		for _, dep := range g.defs[name].DependsOn {
			if dd := resolve(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[name] = d
		return d
	}

	maxDepth := 0
	for _, name := range g.names {
		if d := resolve(name); d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, name := range g.names {
		d := depth[name]
		levels[d] = append(levels[d], name)
	}
	// g.names is sorted, so each level inherits lexicographic order.

	return levels
}
