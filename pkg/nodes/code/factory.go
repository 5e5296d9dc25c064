package code

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeCode
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return New(deps), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"code"},
		"properties": map[string]any{
			"code":       map[string]any{"type": "string", "minLength": 1},
			"language":   map[string]any{"type": "string", "enum": []any{"javascript", "python"}},
			"timeout_ms": map[string]any{"type": "integer", "minimum": 1},
		},
	}
}
