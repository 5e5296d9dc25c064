package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/dagrun/dagrun/pkg/models"
)

// EnvConfigSource resolves provider credentials from the process
// environment. The execution context caches the result per run, so the
// environment is read at most once per provider per execution.
type EnvConfigSource struct{}

func NewEnvConfigSource() *EnvConfigSource {
	return &EnvConfigSource{}
}

func (s *EnvConfigSource) Resolve(_ context.Context, providerID string) (models.AIProviderConfig, error) {
	switch providerID {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return models.AIProviderConfig{}, fmt.Errorf("OPENAI_API_KEY is not set")
		}

		return models.AIProviderConfig{
			Provider: "openai",
			APIKey:   key,
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
		}, nil
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			return models.AIProviderConfig{}, fmt.Errorf("GOOGLE_API_KEY is not set")
		}

		return models.AIProviderConfig{Provider: "google", APIKey: key}, nil
	default:
		return models.AIProviderConfig{}, fmt.Errorf("unknown ai provider %q", providerID)
	}
}
