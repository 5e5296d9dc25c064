package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
)

func node(id string, nodeType models.NodeType) *models.Node {
	return &models.Node{ID: id, Type: nodeType, Name: id, Enabled: true}
}

func edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func TestBuildPlanLinearGraph(t *testing.T) {
	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			node("a", models.NodeTypeInput),
			node("b", models.NodeTypeHTTPRequest),
			node("c", models.NodeTypeOutput),
		},
		Edges: []*models.Edge{edge("a", "b"), edge("b", "c")},
	}

	plan, err := BuildPlan(graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Order)
}

func TestBuildPlanDeclarationOrderTieBreak(t *testing.T) {
	// b and c are both ready after a; b is declared first.
	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			node("a", models.NodeTypeInput),
			node("b", models.NodeTypeHTTPRequest),
			node("c", models.NodeTypeHTTPRequest),
			node("d", models.NodeTypeOutput),
		},
		Edges: []*models.Edge{
			edge("a", "b"), edge("a", "c"),
			edge("b", "d"), edge("c", "d"),
		},
	}

	plan, err := BuildPlan(graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, plan.Order)
}

func TestBuildPlanDetectsCycle(t *testing.T) {
	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			node("a", models.NodeTypeInput),
			node("b", models.NodeTypeHTTPRequest),
		},
		Edges: []*models.Edge{edge("a", "b"), edge("b", "a")},
	}

	_, err := BuildPlan(graph)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}

func TestBuildPlanFlattensGroup(t *testing.T) {
	group := node("g", models.NodeTypeGroup)
	group.Children = []string{"g1", "g2"}

	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			node("a", models.NodeTypeInput),
			group,
			node("g1", models.NodeTypeHTTPRequest),
			node("g2", models.NodeTypeHTTPRequest),
			node("z", models.NodeTypeOutput),
		},
		Edges: []*models.Edge{edge("a", "g"), edge("g", "z")},
	}

	plan, err := BuildPlan(graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "g1", "g2", "z"}, plan.Order)

	// The group itself is not executable.
	_, exists := plan.Nodes["g"]
	assert.False(t, exists)
}

func TestBuildPlanLoopBodyExcludedFromTopLevel(t *testing.T) {
	loopNode := node("l", models.NodeTypeLoop)
	loopNode.Children = []string{"body"}
	loopNode.Config = map[string]any{"mode": "count", "count": 2}

	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			node("a", models.NodeTypeInput),
			loopNode,
			node("body", models.NodeTypeHTTPRequest),
			node("z", models.NodeTypeOutput),
		},
		Edges: []*models.Edge{edge("a", "l"), edge("l", "z")},
	}

	plan, err := BuildPlan(graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "l", "z"}, plan.Order)

	require.Len(t, plan.LoopBodies["l"], 1)
	assert.Equal(t, "body", plan.LoopBodies["l"][0].ID)
}

func TestBuildPlanRejectsSharedChild(t *testing.T) {
	g1 := node("g1", models.NodeTypeGroup)
	g1.Children = []string{"shared"}
	g2 := node("g2", models.NodeTypeGroup)
	g2.Children = []string{"shared"}

	graph := &models.WorkflowGraph{
		ID:    "wf",
		Name:  "wf",
		Nodes: []*models.Node{g1, g2, node("shared", models.NodeTypeHTTPRequest)},
	}

	_, err := BuildPlan(graph)
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}
