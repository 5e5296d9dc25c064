package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapScope map[string]any

func (m mapScope) Lookup(root string) (any, bool) {
	v, ok := m[root]

	return v, ok
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"source": "{{items}}"})
	require.NoError(t, err)

	assert.Equal(t, ModeCollection, cfg.Mode)
	assert.Equal(t, MaxIterationsDefault, cfg.MaxIterations)
	assert.Equal(t, "item", cfg.ItemVar)
	assert.Equal(t, "index", cfg.IndexVar)
}

func TestParseConfigCountModeRequiresCount(t *testing.T) {
	_, err := ParseConfig(map[string]any{"mode": "count"})
	assert.Error(t, err)

	cfg, err := ParseConfig(map[string]any{"mode": "count", "count": float64(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Count)
}

func TestParseConfigRejectsUnknownMode(t *testing.T) {
	_, err := ParseConfig(map[string]any{"mode": "forever"})
	assert.Error(t, err)
}

func TestPlanCollectionMode(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"source": "{{items}}"})
	require.NoError(t, err)

	plan, truncated, err := cfg.Plan(mapScope{"items": []any{"a", "b", "c"}})
	require.NoError(t, err)

	assert.False(t, truncated)
	require.Len(t, plan, 3)
	assert.Equal(t, 0, plan[0].Index)
	assert.Equal(t, "a", plan[0].Item)
	assert.Equal(t, "c", plan[2].Item)
}

func TestPlanCollectionFromNestedPath(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"source": "{{fetch.body.items}}"})
	require.NoError(t, err)

	scope := mapScope{"fetch": map[string]any{"body": map[string]any{"items": []any{1, 2}}}}

	plan, _, err := cfg.Plan(scope)
	require.NoError(t, err)
	assert.Len(t, plan, 2)
}

func TestPlanCountMode(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"mode": "count", "count": 3})
	require.NoError(t, err)

	plan, truncated, err := cfg.Plan(mapScope{})
	require.NoError(t, err)

	assert.False(t, truncated)
	require.Len(t, plan, 3)
	assert.Equal(t, 2, plan[2].Index)
}

func TestPlanTruncatesAtMaxIterations(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"mode": "count", "count": 500, "max_iterations": 10})
	require.NoError(t, err)

	plan, truncated, err := cfg.Plan(mapScope{})
	require.NoError(t, err)

	assert.True(t, truncated)
	assert.Len(t, plan, 10)
}

func TestPlanRejectsNonCollectionSource(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"source": "{{value}}"})
	require.NoError(t, err)

	_, _, err = cfg.Plan(mapScope{"value": "just a string"})
	assert.Error(t, err)
}

func TestPlanAcceptsJSONArrayLiteral(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{"source": `["x","y"]`})
	require.NoError(t, err)

	plan, _, err := cfg.Plan(mapScope{})
	require.NoError(t, err)
	assert.Len(t, plan, 2)
}
