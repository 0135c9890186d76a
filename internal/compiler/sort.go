package compiler

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Graph is the dependency graph of a plan: an edge runs from each dependency to the step declaring it.
type Graph struct {
	order      []string
	dependents map[string][]string
	inDegree   map[string]int
}

// NewGraph builds the graph for steps. Step numbers are assumed unique and dependencies known;
// Compile checks both before sorting.
func NewGraph(steps []domain.Step) *Graph {
	g := &Graph{
		order:      make([]string, 0, len(steps)),
		dependents: make(map[string][]string, len(steps)),
		inDegree:   make(map[string]int, len(steps)),
	}
	for _, s := range steps {
		g.order = append(g.order, s.StepNumber)
		g.inDegree[s.StepNumber] = 0
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			g.dependents[dep] = append(g.dependents[dep], s.StepNumber)
			g.inDegree[s.StepNumber]++
		}
	}
	return g
}

// Dependents returns the steps that consume stepNumber's result, in declaration order.
func (g *Graph) Dependents(stepNumber string) []string {
	return g.dependents[stepNumber]
}

// Order returns a topological order using Kahn's algorithm.
// Ready steps are dequeued FIFO, seeded in declaration order, so the result is deterministic.
func (g *Graph) Order() ([]string, error) {
	inDegree := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		inDegree[k] = v
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, next := range g.dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) != len(g.order) {
		return nil, domain.ErrDependencyCycle
	}
	return sorted, nil
}

// Sort reorders steps into a valid execution order. On a cycle no partial order is returned.
func Sort(steps []domain.Step) ([]domain.Step, error) {
	order, err := NewGraph(steps).Order()
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string]domain.Step, len(steps))
	for _, s := range steps {
		byNumber[s.StepNumber] = s
	}

	out := make([]domain.Step, 0, len(order))
	for _, id := range order {
		s, ok := byNumber[id]
		if !ok {
			return nil, fmt.Errorf("sorted order references unknown step %s", id)
		}
		out = append(out, s)
	}
	return out, nil
}
