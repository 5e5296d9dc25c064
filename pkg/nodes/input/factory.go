package input

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeInput
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return New(deps), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name"},
					"properties": map[string]any{
						"name":     map[string]any{"type": "string", "minLength": 1},
						"value":    map[string]any{},
						"required": map[string]any{"type": "boolean"},
					},
				},
			},
		},
	}
}
