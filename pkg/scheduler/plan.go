package scheduler

import (
	"fmt"

	"github.com/dagrun/dagrun/pkg/models"
)

// Plan is the executable form of a workflow graph: GROUP containers are
// flattened into their children, LOOP containers stay as single units whose
// bodies run per iteration, and Order is a topological order over what
// remains. Ties break on declaration order so runs are deterministic.
type Plan struct {
	Order    []string
	Nodes    map[string]*models.Node
	Incoming map[string][]*models.Edge
	// LoopBodies maps a LOOP node id to its body nodes in execution order.
	LoopBodies map[string][]*models.Node
}

// BuildPlan validates and linearizes a graph. Graphs with dependency cycles
// are rejected.
func BuildPlan(graph *models.WorkflowGraph) (*Plan, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Nodes:      make(map[string]*models.Node, len(graph.Nodes)),
		Incoming:   make(map[string][]*models.Edge),
		LoopBodies: make(map[string][]*models.Node),
	}

	byID := make(map[string]*models.Node, len(graph.Nodes))
	for _, n := range graph.Nodes {
		byID[n.ID] = n
	}

	// A node inside a container belongs to exactly one owner; it is removed
	// from the top level.
	owner := make(map[string]string)

	for _, n := range graph.Nodes {
		if !n.IsContainer() {
			continue
		}

		for _, childID := range n.Children {
			if prev, taken := owner[childID]; taken {
				return nil, fmt.Errorf("%w: node %q is a child of both %q and %q",
					models.ErrInvalidGraph, childID, prev, n.ID)
			}

			owner[childID] = n.ID
		}
	}

	for _, n := range graph.Nodes {
		if n.Type != models.NodeTypeLoop {
			continue
		}

		body := make([]*models.Node, 0, len(n.Children))

		for _, childID := range n.Children {
			child := byID[childID]
			if child.IsContainer() {
				return nil, fmt.Errorf("%w: loop %q nests container %q", models.ErrInvalidGraph, n.ID, childID)
			}

			body = append(body, child)
		}

		plan.LoopBodies[n.ID] = body
	}

	// Top-level nodes: everything except GROUP containers and container
	// children. Loop body members are executed inside the loop.
	var topLevel []*models.Node

	for _, n := range graph.Nodes {
		if n.Type == models.NodeTypeGroup {
			continue
		}

		if ownerID, owned := owner[n.ID]; owned {
			if byID[ownerID].Type == models.NodeTypeLoop {
				continue
			}
			// Group children stay top level; the group's edges are rewired
			// onto them below.
		}

		topLevel = append(topLevel, n)
	}

	edges, err := rewireEdges(graph, byID, owner)
	if err != nil {
		return nil, err
	}

	for _, e := range edges {
		plan.Incoming[e.Target] = append(plan.Incoming[e.Target], e)
	}

	order, err := topoSort(topLevel, edges)
	if err != nil {
		return nil, err
	}

	plan.Order = order

	for _, n := range topLevel {
		plan.Nodes[n.ID] = n
	}

	return plan, nil
}

// rewireEdges rewrites graph edges onto the flattened node set:
//   - edges into a GROUP target its first child, edges out of a GROUP leave
//     its last child, and the group's children are chained in declaration
//     order
//   - edges touching a loop body member attach to the owning LOOP node
//
// Self-edges produced by the rewrite are dropped.
func rewireEdges(graph *models.WorkflowGraph, byID map[string]*models.Node, owner map[string]string) ([]*models.Edge, error) {
	entry := make(map[string]string)
	exit := make(map[string]string)

	var edges []*models.Edge

	for _, n := range graph.Nodes {
		switch n.Type {
		case models.NodeTypeGroup:
			if len(n.Children) == 0 {
				return nil, fmt.Errorf("%w: group %q has no children", models.ErrInvalidGraph, n.ID)
			}

			entry[n.ID] = n.Children[0]
			exit[n.ID] = n.Children[len(n.Children)-1]

			for i := 0; i+1 < len(n.Children); i++ {
				edges = append(edges, &models.Edge{
					ID:     fmt.Sprintf("%s-seq-%d", n.ID, i),
					Source: n.Children[i],
					Target: n.Children[i+1],
				})
			}
		case models.NodeTypeLoop:
			entry[n.ID] = n.ID
			exit[n.ID] = n.ID
		}
	}

	resolve := func(id string, useEntry bool) string {
		// Loop body member: the edge belongs to the loop itself.
		if ownerID, owned := owner[id]; owned && byID[ownerID].Type == models.NodeTypeLoop {
			return ownerID
		}

		if useEntry {
			if e, ok := entry[id]; ok {
				return e
			}
		} else {
			if e, ok := exit[id]; ok {
				return e
			}
		}

		return id
	}

	for _, e := range graph.Edges {
		source := resolve(e.Source, false)
		target := resolve(e.Target, true)

		if source == target {
			continue
		}

		edges = append(edges, &models.Edge{ID: e.ID, Source: source, Target: target, Branch: e.Branch})
	}

	return edges, nil
}

// topoSort is Kahn's algorithm with a declaration-order tie-break.
func topoSort(nodes []*models.Node, edges []*models.Edge) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	indegree := make(map[string]int, len(nodes))
	outgoing := make(map[string][]string)

	for _, e := range edges {
		if _, ok := index[e.Source]; !ok {
			continue
		}

		if _, ok := index[e.Target]; !ok {
			continue
		}

		indegree[e.Target]++
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}

	var ready []string

	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(nodes))

	for len(ready) > 0 {
		// Pick the earliest-declared ready node.
		best := 0
		for i := 1; i < len(ready); i++ {
			if index[ready[i]] < index[ready[best]] {
				best = i
			}
		}

		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, next := range outgoing[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: dependency cycle detected", models.ErrInvalidGraph)
	}

	return order, nil
}
