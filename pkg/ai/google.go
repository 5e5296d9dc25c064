package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

const DefaultGoogleModel = "gemini-2.0-flash"

// Google implements protocol.AIClient against the Gemini API. The genai
// client is created lazily and reused across calls for the same key.
type Google struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGoogle() *Google {
	return &Google{clients: make(map[string]*genai.Client)}
}

func (g *Google) client(ctx context.Context, cfg models.AIProviderConfig) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if client, ok := g.clients[cfg.APIKey]; ok {
		return client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create google genai client: %w", err)
	}

	g.clients[cfg.APIKey] = client

	return client, nil
}

func (g *Google) Chat(ctx context.Context, cfg models.AIProviderConfig, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	client, err := g.client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = cfg.Model
	}

	if model == "" {
		model = DefaultGoogleModel
	}

	config := &genai.GenerateContentConfig{}

	var contents []*genai.Content

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("google generate content failed: %w", err)
	}

	out := &protocol.ChatResponse{Content: resp.Text()}

	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return out, nil
}

func (g *Google) GenerateMedia(ctx context.Context, cfg models.AIProviderConfig, modality protocol.Modality, req protocol.MediaRequest) (*protocol.MediaResult, error) {
	client, err := g.client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch modality {
	case protocol.ModalityImage:
		model := req.Model
		if model == "" {
			model = "imagen-3.0-generate-002"
		}

		resp, err := client.Models.GenerateImages(ctx, model, req.Prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("google image generation failed: %w", err)
		}

		if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
			return nil, fmt.Errorf("google returned no image data")
		}

		image := resp.GeneratedImages[0].Image

		return &protocol.MediaResult{
			Data:     image.ImageBytes,
			MimeType: image.MIMEType,
		}, nil
	default:
		return nil, fmt.Errorf("google provider does not support %s generation", modality)
	}
}
