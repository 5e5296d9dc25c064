package condition

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeCondition
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return New(deps), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{"type": "string"},
			"left":       map[string]any{"type": "string"},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{
					"eq", "not_eq", "contains", "not_contains",
					"gt", "gte", "lt", "lte", "is_empty", "is_not_empty",
				},
			},
			"right": map[string]any{"type": "string"},
		},
	}
}
