package switchnode

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

func eval(t *testing.T, config map[string]any, scope mapScope) models.NodeResult {
	t.Helper()

	p := New(protocol.Dependencies{})
	node := &models.Node{ID: "s", Type: models.NodeTypeSwitch, Name: "s", Enabled: true, Config: config}

	return p.Process(context.Background(), node, protocol.ProcessEnv{Scope: scope})
}

func TestMatchingCaseSelectsBranch(t *testing.T) {
	result := eval(t, map[string]any{
		"value": "{{kind}}",
		"cases": []any{"email", "sms", "push"},
	}, mapScope{"kind": "sms"})

	assert.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "sms", result.Data["branch"])
	assert.Equal(t, "sms", result.Data["value"])
}

func TestNoMatchFallsToDefault(t *testing.T) {
	result := eval(t, map[string]any{
		"value": "{{kind}}",
		"cases": []any{"email", "sms"},
	}, mapScope{"kind": "carrier-pigeon"})

	assert.Equal(t, DefaultBranch, result.Data["branch"])
}

func TestMissingValueFails(t *testing.T) {
	result := eval(t, map[string]any{"cases": []any{"a"}}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
}

func TestEmptyCasesFails(t *testing.T) {
	result := eval(t, map[string]any{"value": "x", "cases": []any{}}, mapScope{})

	assert.Equal(t, models.ResultStatusError, result.Status)
}
