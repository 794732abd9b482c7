package coordinator

import (
	"sort"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// Layers groups the intents of a plan into topological generations: layer 0
// holds intents without dependencies and every other intent sits one layer
// after its deepest dependency. IDs within a layer are sorted.
//
// The whole graph is checked for cycles first; a cycle yields a
// *domain.CycleError naming the intents along it.
func Layers(plan *domain.Plan) ([][]string, error) {
	deps := make(map[string][]string, len(plan.Intents))
	for _, in := range plan.Intents {
		deps[in.ID] = in.DependsOn
	}

	if path := findCycle(plan.Intents, deps); path != nil {
		return nil, &domain.CycleError{Path: path}
	}

	depth := make(map[string]int, len(plan.Intents))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range deps[id] {
			if dd := depthOf(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	var layers [][]string
	for _, in := range plan.Intents {
		d := depthOf(in.ID)
		for len(layers) <= d {
			layers = append(layers, nil)
		}
		layers[d] = append(layers[d], in.ID)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return layers, nil
}

// findCycle runs a depth-first search in plan order and returns the first
// cycle found as a path whose first id is repeated at the end.
func findCycle(intents []domain.InvocationIntent, deps map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(intents))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			switch state[dep] {
			case visiting:
				for i, s := range stack {
					if s == dep {
						path := append([]string(nil), stack[i:]...)
						return append(path, dep)
					}
				}
			case unvisited:
				if path := visit(dep); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, in := range intents {
		if state[in.ID] == unvisited {
			if path := visit(in.ID); path != nil {
				return path
			}
		}
	}
	return nil
}
