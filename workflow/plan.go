package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports that no valid execution order exists. Nodes lists the
// ids still carrying incoming edges when Kahn's algorithm stalled, sorted
// ascending.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow contains a cycle involving nodes: %s", strings.Join(e.Nodes, ", "))
}

// Plan computes a deterministic topological execution order for the graph
// using Kahn's algorithm. When several nodes are ready simultaneously the
// smallest node id runs first, so identical graphs always yield identical
// orders. Returns *CycleError if the graph is not acyclic.
func Plan(g *Graph) ([]string, error) {
	inDegree := g.InDegrees()
	out := g.Outgoing()

	ready := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, next := range out[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.Nodes) {
		var stuck []string
		for id, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}

	return order, nil
}
