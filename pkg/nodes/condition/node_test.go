package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type mapScope map[string]any

func (m mapScope) Lookup(root string) (any, bool) {
	v, ok := m[root]

	return v, ok
}

func (m mapScope) Env() map[string]any {
	return m
}

func eval(t *testing.T, config map[string]any, scope mapScope) models.NodeResult {
	t.Helper()

	p := New(protocol.Dependencies{})
	node := &models.Node{ID: "c", Type: models.NodeTypeCondition, Name: "c", Enabled: true, Config: config}

	return p.Process(context.Background(), node, protocol.ProcessEnv{Scope: scope})
}

func TestComparisonOperators(t *testing.T) {
	cases := []struct {
		name     string
		left     string
		operator string
		right    string
		want     bool
	}{
		{"eq match", "abc", "eq", "abc", true},
		{"eq mismatch", "abc", "eq", "abd", false},
		{"not_eq", "a", "not_eq", "b", true},
		{"contains", "hello world", "contains", "world", true},
		{"not_contains", "hello", "not_contains", "x", true},
		{"gt", "10", "gt", "9.5", true},
		{"gte equal", "3", "gte", "3", true},
		{"lt", "2", "lt", "10", true},
		{"lte fails", "11", "lte", "10", false},
		{"is_empty", "  ", "is_empty", "", true},
		{"is_not_empty", "x", "is_not_empty", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := eval(t, map[string]any{
				"left": tc.left, "operator": tc.operator, "right": tc.right,
			}, mapScope{})

			assert.Equal(t, models.ResultStatusSuccess, result.Status)
			assert.Equal(t, tc.want, result.Data["result"])
		})
	}
}

func TestBranchLabelFollowsOutcome(t *testing.T) {
	result := eval(t, map[string]any{"left": "a", "operator": "eq", "right": "a"}, mapScope{})
	assert.Equal(t, "true", result.Data["branch"])

	result = eval(t, map[string]any{"left": "a", "operator": "eq", "right": "b"}, mapScope{})
	assert.Equal(t, "false", result.Data["branch"])
}

func TestOperandsResolveTemplates(t *testing.T) {
	scope := mapScope{"fetch": map[string]any{"status": float64(200)}}

	result := eval(t, map[string]any{
		"left": "{{fetch.status}}", "operator": "eq", "right": "200",
	}, scope)

	assert.Equal(t, true, result.Data["result"])
}

func TestNonNumericComparisonFails(t *testing.T) {
	result := eval(t, map[string]any{"left": "abc", "operator": "gt", "right": "1"}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
	assert.Contains(t, result.Error, "not numeric")
}

func TestUnknownOperatorFails(t *testing.T) {
	result := eval(t, map[string]any{"left": "a", "operator": "between", "right": "b"}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
}

func TestExpressionMode(t *testing.T) {
	scope := mapScope{"count": 5, "status": "ready"}

	result := eval(t, map[string]any{"expression": `count > 3 && status == "ready"`}, scope)

	assert.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, true, result.Data["result"])
	assert.Equal(t, "true", result.Data["branch"])
}

func TestExpressionCompileErrorFails(t *testing.T) {
	result := eval(t, map[string]any{"expression": "count >"}, mapScope{"count": 1})

	assert.Equal(t, models.ResultStatusError, result.Status)
}
