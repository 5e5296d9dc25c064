package notification

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeNotification
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return New(deps), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"channel": map[string]any{"type": "string", "enum": []any{"webhook", "log"}},
			"target":  map[string]any{"type": "string"},
			"subject": map[string]any{"type": "string"},
			"message": map[string]any{"type": "string", "minLength": 1},
		},
	}
}
