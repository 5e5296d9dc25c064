package loop

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

// Factory only contributes the config schema: LOOP is a container node and
// the scheduler, not a processor, drives its iterations.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeLoop
}

func (f *Factory) Create(_ protocol.Dependencies) (protocol.Processor, error) {
	return nil, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode":           map[string]any{"type": "string", "enum": []any{"collection", "count"}},
			"source":         map[string]any{"type": "string"},
			"count":          map[string]any{"type": "integer", "minimum": 1},
			"max_iterations": map[string]any{"type": "integer", "minimum": 1},
			"item_var":       map[string]any{"type": "string"},
			"index_var":      map[string]any{"type": "string"},
		},
	}
}
