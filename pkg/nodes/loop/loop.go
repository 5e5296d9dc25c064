// Package loop provides configuration parsing and iteration planning for
// LOOP container nodes. The scheduler owns the actual iteration: it runs the
// node's child subgraph once per planned iteration with the iteration
// variables layered over the outer scope.
package loop

import (
	"encoding/json"
	"fmt"

	"github.com/dagrun/dagrun/pkg/template"
)

// MaxIterationsDefault caps runaway loops when the config does not set its
// own limit.
const MaxIterationsDefault = 100

type Mode string

const (
	ModeCollection Mode = "collection"
	ModeCount      Mode = "count"
)

// Config is the parsed LOOP node configuration.
type Config struct {
	Mode          Mode
	Source        string
	Count         int
	MaxIterations int
	ItemVar       string
	IndexVar      string
}

// Iteration is one planned pass over the loop body.
type Iteration struct {
	Index int
	Item  any
}

func ParseConfig(raw map[string]any) (Config, error) {
	cfg := Config{
		Mode:          ModeCollection,
		MaxIterations: MaxIterationsDefault,
		ItemVar:       "item",
		IndexVar:      "index",
	}

	if v, ok := raw["mode"].(string); ok && v != "" {
		switch m := Mode(v); m {
		case ModeCollection, ModeCount:
			cfg.Mode = m
		default:
			return Config{}, fmt.Errorf("unknown loop mode %q", v)
		}
	}

	if v, ok := raw["source"].(string); ok {
		cfg.Source = v
	}

	cfg.Count = intValue(raw["count"])

	if v := intValue(raw["max_iterations"]); v > 0 {
		cfg.MaxIterations = v
	}

	if v, ok := raw["item_var"].(string); ok && v != "" {
		cfg.ItemVar = v
	}

	if v, ok := raw["index_var"].(string); ok && v != "" {
		cfg.IndexVar = v
	}

	switch cfg.Mode {
	case ModeCollection:
		if cfg.Source == "" {
			return Config{}, fmt.Errorf("'source' is required in collection mode")
		}
	case ModeCount:
		if cfg.Count <= 0 {
			return Config{}, fmt.Errorf("'count' must be positive in count mode")
		}
	}

	return cfg, nil
}

// Plan materializes the iterations against the current scope. The plan is
// truncated at MaxIterations rather than failing; the scheduler records the
// truncation on the node's output.
func (c Config) Plan(scope template.Scope) ([]Iteration, bool, error) {
	var items []any

	switch c.Mode {
	case ModeCount:
		items = make([]any, c.Count)
		for i := range items {
			items[i] = i
		}
	case ModeCollection:
		collection, err := c.resolveCollection(scope)
		if err != nil {
			return nil, false, err
		}

		items = collection
	}

	truncated := false
	if len(items) > c.MaxIterations {
		items = items[:c.MaxIterations]
		truncated = true
	}

	plan := make([]Iteration, len(items))
	for i, item := range items {
		plan[i] = Iteration{Index: i, Item: item}
	}

	return plan, truncated, nil
}

func (c Config) resolveCollection(scope template.Scope) ([]any, error) {
	if value, ok := template.Value(c.Source, scope); ok {
		return coerceCollection(value)
	}

	// Not a single token: resolve as text and accept a JSON array literal.
	resolved := template.Resolve(c.Source, scope)

	var items []any
	if err := json.Unmarshal([]byte(resolved), &items); err != nil {
		return nil, fmt.Errorf("loop source %q does not resolve to a collection", c.Source)
	}

	return items, nil
}

func coerceCollection(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any:
		// Iterating a map yields its entries as {key, value} items in
		// unspecified order.
		items := make([]any, 0, len(v))
		for k, val := range v {
			items = append(items, map[string]any{"key": k, "value": val})
		}

		return items, nil
	default:
		return nil, fmt.Errorf("loop source resolves to %T, not a collection", value)
	}
}

func intValue(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
