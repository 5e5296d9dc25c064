package process

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

// Factory serves PROCESS and, through NewMediaFactory, the media node types.
type Factory struct {
	nodeType models.NodeType
	modality protocol.Modality
}

func NewFactory() *Factory {
	return &Factory{nodeType: models.NodeTypeProcess, modality: protocol.ModalityText}
}

// NewMediaFactory builds a factory for IMAGE, VIDEO or AUDIO, which share
// the PROCESS processor with a fixed modality.
func NewMediaFactory(nodeType models.NodeType) *Factory {
	modality := protocol.ModalityText

	switch nodeType {
	case models.NodeTypeImage:
		modality = protocol.ModalityImage
	case models.NodeTypeVideo:
		modality = protocol.ModalityVideo
	case models.NodeTypeAudio:
		modality = protocol.ModalityAudio
	}

	return &Factory{nodeType: nodeType, modality: modality}
}

func (f *Factory) Type() models.NodeType {
	return f.nodeType
}

func (f *Factory) Create(deps protocol.Dependencies) (protocol.Processor, error) {
	return newWithModality(deps, f.nodeType, f.modality), nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"prompt"},
		"properties": map[string]any{
			"provider":      map[string]any{"type": "string"},
			"model":         map[string]any{"type": "string"},
			"system_prompt": map[string]any{"type": "string"},
			"prompt":        map[string]any{"type": "string", "minLength": 1},
			"temperature":   map[string]any{"type": "number"},
			"max_tokens":    map[string]any{"type": "integer", "minimum": 1},
			"size":          map[string]any{"type": "string"},
			"modality":      map[string]any{"type": "string", "enum": []any{"text", "image", "video", "audio"}},
		},
	}
}
