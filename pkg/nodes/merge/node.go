// Package merge provides the fan-in node combining outputs of several
// upstream nodes into one map.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Mode string

const (
	// ModeConcat collects source outputs into a list, preserving source order.
	ModeConcat Mode = "concat"
	// ModeOverwrite shallow-merges source outputs; later sources win.
	ModeOverwrite Mode = "overwrite"
	// ModeUnion shallow-merges source outputs; the first value per key wins.
	ModeUnion Mode = "union"
)

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeMerge
}

// Process combines upstream outputs named in config. Sources whose node was
// pruned or failed have no recorded output and are ignored, so a merge after
// a CONDITION joins whichever branch actually ran.
func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	sources, err := parseSources(node.Config["sources"])
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	mode := ModeOverwrite
	if v, ok := node.Config["mode"].(string); ok && v != "" {
		switch m := Mode(v); m {
		case ModeConcat, ModeOverwrite, ModeUnion:
			mode = m
		default:
			return timed(models.ErrorResult(node.ID, fmt.Sprintf("unknown merge mode %q", v)), started)
		}
	}

	outputs := make([]map[string]any, 0, len(sources))

	for _, name := range sources {
		value, ok := env.Scope.Lookup(name)
		if !ok {
			continue
		}

		if m, ok := value.(map[string]any); ok {
			outputs = append(outputs, m)
		} else {
			outputs = append(outputs, map[string]any{"value": value})
		}
	}

	var data map[string]any

	switch mode {
	case ModeConcat:
		items := make([]any, len(outputs))
		for i, out := range outputs {
			items[i] = out
		}

		data = map[string]any{"items": items}
	case ModeOverwrite:
		data = make(map[string]any)
		for _, out := range outputs {
			for k, v := range out {
				data[k] = v
			}
		}
	case ModeUnion:
		data = make(map[string]any)
		for _, out := range outputs {
			for k, v := range out {
				if _, exists := data[k]; !exists {
					data[k] = v
				}
			}
		}
	}

	return timed(models.SuccessResult(node.ID, data), started)
}

func parseSources(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("'sources' must be a non-empty array")
	}

	sources := make([]string, 0, len(items))

	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("source %d must be a non-empty string", i)
		}

		sources = append(sources, s)
	}

	return sources, nil
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
