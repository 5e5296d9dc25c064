package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"
	WorkflowStatusPublished WorkflowStatus = "published"
)

// WorkflowGraph is the immutable input to one execution: nodes plus the
// directed edges between them. Variables seed the execution's global scope.
type WorkflowGraph struct {
	ID          string         `json:"id"     validate:"required"`
	Name        string         `json:"name"   validate:"required,min=1"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"`
	OrgID       string         `json:"org_id,omitempty"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ErrInvalidGraph wraps all structural validation failures so callers can
// distinguish them from runtime node errors.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// NodeByID returns the node with the given id, or nil.
func (w *WorkflowGraph) NodeByID(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// Validate checks the structural invariants of the graph: unique node ids,
// edges referencing existing nodes, container children that exist and are
// not themselves containers. It reports violations instead of panicking so
// broken graphs fail an execution cleanly before any node runs.
func (w *WorkflowGraph) Validate() error {
	byID := make(map[string]*Node, len(w.Nodes))

	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}

		if _, exists := byID[n.ID]; exists {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}

		byID[n.ID] = n
	}

	for _, e := range w.Edges {
		if _, ok := byID[e.Source]; !ok {
			return fmt.Errorf("%w: edge %q references unknown source %q", ErrInvalidGraph, e.ID, e.Source)
		}

		if _, ok := byID[e.Target]; !ok {
			return fmt.Errorf("%w: edge %q references unknown target %q", ErrInvalidGraph, e.ID, e.Target)
		}
	}

	for _, n := range w.Nodes {
		if !n.IsContainer() {
			continue
		}

		for _, childID := range n.Children {
			child, ok := byID[childID]
			if !ok {
				return fmt.Errorf("%w: %s node %q references unknown child %q", ErrInvalidGraph, n.Type, n.ID, childID)
			}

			if child.Type == NodeTypeGroup {
				return fmt.Errorf("%w: %s node %q nests group %q", ErrInvalidGraph, n.Type, n.ID, childID)
			}
		}
	}

	return nil
}
