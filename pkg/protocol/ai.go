package protocol

import (
	"context"

	"github.com/dagrun/dagrun/pkg/models"
)

// Modality discriminates the downstream call shape of a PROCESS node. All
// modalities share the same variable resolution and accounting path.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// ChatMessage is one message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// ChatResponse carries the generated text plus token counts for accounting.
type ChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// MediaRequest is a provider-neutral media generation request.
type MediaRequest struct {
	Model  string
	Prompt string
	Size   string
}

// MediaResult references the generated artifact.
type MediaResult struct {
	URL      string
	MimeType string
	Data     []byte
}

// AIClient is the uniform capability boundary to external AI providers.
// The concrete set of providers behind it is pluggable.
type AIClient interface {
	Chat(ctx context.Context, cfg models.AIProviderConfig, req ChatRequest) (*ChatResponse, error)
	GenerateMedia(ctx context.Context, cfg models.AIProviderConfig, modality Modality, req MediaRequest) (*MediaResult, error)
}

// AIConfigSource resolves provider credentials on first use; the execution
// context caches the result for the rest of the run.
type AIConfigSource interface {
	Resolve(ctx context.Context, providerID string) (models.AIProviderConfig, error)
}
