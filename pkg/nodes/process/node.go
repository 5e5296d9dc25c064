// Package process provides the AI generation node. One processor serves the
// PROCESS node plus the IMAGE, VIDEO and AUDIO node types, which are the same
// operation with the modality fixed.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dagrun/dagrun/pkg/ai"
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

type Processor struct {
	nodeType models.NodeType
	modality protocol.Modality
	client   protocol.AIClient
	configs  protocol.AIConfigSource
}

func New(deps protocol.Dependencies) *Processor {
	return newWithModality(deps, models.NodeTypeProcess, protocol.ModalityText)
}

func newWithModality(deps protocol.Dependencies, nodeType models.NodeType, modality protocol.Modality) *Processor {
	return &Processor{
		nodeType: nodeType,
		modality: modality,
		client:   deps.AI,
		configs:  deps.AIConfigs,
	}
}

func (p *Processor) Type() models.NodeType {
	return p.nodeType
}

func (p *Processor) Process(ctx context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	if p.client == nil {
		return timed(models.ErrorResult(node.ID, "no AI client configured"), started)
	}

	cfg, err := parseConfig(node.Config, p.modality)
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	provider, err := p.resolveProvider(ctx, env.Context, cfg.Provider)
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	model := cfg.Model
	if model == "" {
		model = provider.Model
	}

	prompt := template.Resolve(cfg.UserPrompt, env.Scope)

	var result models.NodeResult

	if cfg.Modality == protocol.ModalityText {
		result = p.chat(ctx, node, env, provider, cfg, model, prompt)
	} else {
		result = p.generateMedia(ctx, node, env, provider, cfg, model, prompt)
	}

	return timed(result, started)
}

// resolveProvider returns the cached provider config or resolves it once via
// the config source. The per-execution cache is first-resolution-wins.
func (p *Processor) resolveProvider(ctx context.Context, ec *models.ExecutionContext, providerID string) (models.AIProviderConfig, error) {
	if cfg, ok := ec.AIConfig(providerID); ok {
		return cfg, nil
	}

	if p.configs == nil {
		return models.AIProviderConfig{}, fmt.Errorf("no credential source for provider %q", providerID)
	}

	cfg, err := p.configs.Resolve(ctx, providerID)
	if err != nil {
		return models.AIProviderConfig{}, fmt.Errorf("resolve provider %q: %w", providerID, err)
	}

	ec.PutAIConfig(providerID, cfg)

	cached, _ := ec.AIConfig(providerID)

	return cached, nil
}

func (p *Processor) chat(
	ctx context.Context,
	node *models.Node,
	env protocol.ProcessEnv,
	provider models.AIProviderConfig,
	cfg Config,
	model, prompt string,
) models.NodeResult {
	req := protocol.ChatRequest{
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	if cfg.SystemPrompt != "" {
		req.Messages = append(req.Messages, protocol.ChatMessage{
			Role:    "system",
			Content: template.Resolve(cfg.SystemPrompt, env.Scope),
		})
	}

	req.Messages = append(req.Messages, protocol.ChatMessage{Role: "user", Content: prompt})

	resp, err := p.client.Chat(ctx, provider, req)
	if err != nil {
		return models.ErrorResult(node.ID, fmt.Sprintf("chat completion: %v", err))
	}

	env.Context.AddUsage(resp.PromptTokens, resp.CompletionTokens,
		ai.EstimateCost(model, resp.PromptTokens, resp.CompletionTokens))

	return models.SuccessResult(node.ID, map[string]any{
		"text":              resp.Content,
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
	})
}

func (p *Processor) generateMedia(
	ctx context.Context,
	node *models.Node,
	env protocol.ProcessEnv,
	provider models.AIProviderConfig,
	cfg Config,
	model, prompt string,
) models.NodeResult {
	resp, err := p.client.GenerateMedia(ctx, provider, cfg.Modality, protocol.MediaRequest{
		Model:  model,
		Prompt: prompt,
		Size:   cfg.Size,
	})
	if err != nil {
		return models.ErrorResult(node.ID, fmt.Sprintf("generate %s: %v", cfg.Modality, err))
	}

	result := models.SuccessResult(node.ID, map[string]any{
		"url":       resp.URL,
		"mime_type": resp.MimeType,
	})

	result.Files = []models.OutputFile{{
		ID:          uuid.NewString(),
		ExecutionID: env.Context.ExecutionID,
		NodeID:      node.ID,
		Name:        fmt.Sprintf("%s-%s", cfg.Modality, node.ID),
		URL:         resp.URL,
		MimeType:    resp.MimeType,
		SizeBytes:   int64(len(resp.Data)),
		CreatedAt:   time.Now().UTC(),
	}}

	return result
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
