package cache

import (
	"fmt"

	"github.com/querypulse/querypulse/internal/contract"
)

// Edge declares that invalidating keys matching Source must also invalidate
// keys matching every pattern in Dependents.
type Edge struct {
	Source     string
	Dependents []string
}

// Graph is the validated cascade dependency graph. It is built once at
// startup; the edge set must be acyclic so an invalidation terminates after
// visiting each edge at most once.
type Graph struct {
	edges []Edge
}

// NewGraph validates the edge set and returns the graph. A cycle in the
// chained pattern relationships is a construction-time error, never a
// runtime hazard.
func NewGraph(edges []Edge) (*Graph, error) {
	g := &Graph{edges: edges}

	// DFS over edge indices. Edge a chains to edge b when one of a's
	// dependent patterns would trigger b at invalidation time.
	const (
		unseen = iota
		inStack
		done
	)
	colors := make([]int, len(edges))

	var visit func(i int) error
	visit = func(i int) error {
		colors[i] = inStack
		for _, dep := range edges[i].Dependents {
			for j := range edges {
				if !contract.MatchPattern(edges[j].Source, dep) && !contract.MatchPattern(dep, edges[j].Source) {
					continue
				}
				switch colors[j] {
				case inStack:
					return fmt.Errorf("cascade cycle detected: %q -> %q", edges[i].Source, edges[j].Source)
				case unseen:
					if err := visit(j); err != nil {
						return err
					}
				}
			}
		}
		colors[i] = done
		return nil
	}

	for i := range edges {
		if colors[i] == unseen {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Dependents returns the dependent patterns of every not-yet-visited edge
// triggered by pattern, marking those edges visited. The visited slice makes
// the at-most-once edge guarantee explicit per invalidation call.
func (g *Graph) Dependents(pattern string, visited []bool) []string {
	var deps []string
	for i, e := range g.edges {
		if visited[i] {
			continue
		}
		if contract.MatchPattern(e.Source, pattern) || contract.MatchPattern(pattern, e.Source) {
			visited[i] = true
			deps = append(deps, e.Dependents...)
		}
	}
	return deps
}

// Len returns the number of registered edges.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.edges)
}
