package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
)

type mapScope map[string]any

func (m mapScope) Lookup(root string) (any, bool) {
	v, ok := m[root]

	return v, ok
}

func (m mapScope) Env() map[string]any {
	return m
}

func TestResolveSimpleToken(t *testing.T) {
	scope := mapScope{"name": "Ada"}

	assert.Equal(t, "hello Ada", Resolve("hello {{name}}", scope))
}

func TestResolveDotPath(t *testing.T) {
	scope := mapScope{
		"fetch": map[string]any{
			"body": map[string]any{
				"items": []any{"first", "second"},
			},
		},
	}

	assert.Equal(t, "second", Resolve("{{fetch.body.items.1}}", scope))
}

func TestResolveUnresolvedTokenLeftLiteral(t *testing.T) {
	scope := mapScope{}

	out, unresolved := ResolveTracked("value: {{missing.path}}", scope)

	assert.Equal(t, "value: {{missing.path}}", out)
	assert.Equal(t, []string{"{{missing.path}}"}, unresolved)
}

func TestResolveIsIdempotentOnUnresolved(t *testing.T) {
	scope := mapScope{}

	once := Resolve("{{missing}}", scope)
	twice := Resolve(once, scope)

	assert.Equal(t, once, twice)
}

func TestResolveNonStringValuesAsJSON(t *testing.T) {
	scope := mapScope{
		"result": map[string]any{"count": float64(3)},
		"flag":   true,
		"none":   nil,
	}

	assert.Equal(t, `{"count":3}`, Resolve("{{result}}", scope))
	assert.Equal(t, "true", Resolve("{{flag}}", scope))
	assert.Equal(t, "", Resolve("{{none}}", scope))
}

func TestResolveUnicodeIdentifiers(t *testing.T) {
	scope := mapScope{
		"信息填写": map[string]any{"产品名称": "蛋白棒"},
	}

	assert.Equal(t, "写一篇关于蛋白棒的文案", Resolve("写一篇关于{{信息填写.产品名称}}的文案", scope))
}

func TestResolveBrokenPathStopsAtNonIndexable(t *testing.T) {
	scope := mapScope{"node": map[string]any{"text": "plain"}}

	assert.Equal(t, "{{node.text.deeper}}", Resolve("{{node.text.deeper}}", scope))
}

func TestValueReturnsRawStructure(t *testing.T) {
	scope := mapScope{"list": map[string]any{"items": []any{1, 2}}}

	value, ok := Value("{{list.items}}", scope)

	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, value)
}

func TestValueRejectsMixedInput(t *testing.T) {
	scope := mapScope{"a": 1}

	_, ok := Value("prefix {{a}}", scope)

	assert.False(t, ok)
}

func TestContextScopeNodeNameWinsOverGlobal(t *testing.T) {
	graph := &models.WorkflowGraph{
		ID:   "wf",
		Name: "wf",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeInput, Name: "form", Enabled: true},
		},
	}

	ec := models.NewExecutionContext("ex", "wf", map[string]any{"form": "global"}, nil)
	scope := NewContextScope(graph, ec)

	// Before the node runs the global is visible.
	assert.Equal(t, "global", Resolve("{{form}}", scope))

	require.NoError(t, ec.SetNodeOutput("n1", map[string]any{"field": "output"}))
	assert.Equal(t, "output", Resolve("{{form.field}}", scope))
}

func TestLayeredScopeShadowsParent(t *testing.T) {
	parent := mapScope{"item": "outer", "other": "visible"}
	layered := &LayeredScope{Parent: parent, Vars: map[string]any{"item": "inner"}}

	assert.Equal(t, "inner", Resolve("{{item}}", layered))
	assert.Equal(t, "visible", Resolve("{{other}}", layered))

	env := layered.Env()
	assert.Equal(t, "visible", env["other"])
}
