package merge

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeMerge
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return New(deps), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"sources"},
		"properties": map[string]any{
			"sources": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
			"mode": map[string]any{
				"type": "string",
				"enum": []any{"concat", "overwrite", "union"},
			},
		},
	}
}
