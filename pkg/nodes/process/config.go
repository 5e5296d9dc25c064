package process

import (
	"fmt"

	"github.com/dagrun/dagrun/pkg/protocol"
)

// Config is the parsed PROCESS node configuration. The same shape serves the
// media node types; only the modality differs.
type Config struct {
	Provider     string
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	Size         string
	Modality     protocol.Modality
}

func parseConfig(raw map[string]any, preset protocol.Modality) (Config, error) {
	cfg := Config{
		Provider: "openai",
		Modality: preset,
	}

	if v, ok := raw["provider"].(string); ok && v != "" {
		cfg.Provider = v
	}

	if v, ok := raw["model"].(string); ok {
		cfg.Model = v
	}

	if v, ok := raw["system_prompt"].(string); ok {
		cfg.SystemPrompt = v
	}

	if v, ok := raw["prompt"].(string); ok {
		cfg.UserPrompt = v
	}

	if cfg.UserPrompt == "" {
		return Config{}, fmt.Errorf("'prompt' is required")
	}

	switch v := raw["temperature"].(type) {
	case float64:
		cfg.Temperature = v
	case int:
		cfg.Temperature = float64(v)
	}

	switch v := raw["max_tokens"].(type) {
	case float64:
		cfg.MaxTokens = int(v)
	case int:
		cfg.MaxTokens = v
	}

	if v, ok := raw["size"].(string); ok {
		cfg.Size = v
	}

	// PROCESS nodes may select a non-text modality explicitly; the dedicated
	// media node types have it preset and ignore the config key.
	if preset == protocol.ModalityText {
		if v, ok := raw["modality"].(string); ok && v != "" {
			switch m := protocol.Modality(v); m {
			case protocol.ModalityText, protocol.ModalityImage, protocol.ModalityVideo, protocol.ModalityAudio:
				cfg.Modality = m
			default:
				return Config{}, fmt.Errorf("unknown modality %q", v)
			}
		}
	}

	return cfg, nil
}
