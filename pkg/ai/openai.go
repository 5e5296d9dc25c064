package ai

import (
	"context"
	"fmt"

	openaiapi "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI implements protocol.AIClient against the OpenAI API (and any
// compatible endpoint via BaseURL).
type OpenAI struct{}

func NewOpenAI() *OpenAI {
	return &OpenAI{}
}

func (o *OpenAI) client(cfg models.AIProviderConfig) openaiapi.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return openaiapi.NewClient(opts...)
}

func (o *OpenAI) Chat(ctx context.Context, cfg models.AIProviderConfig, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = cfg.Model
	}

	if model == "" {
		model = DefaultOpenAIModel
	}

	messages := make([]openaiapi.ChatCompletionMessageParamUnion, 0, len(req.Messages))

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openaiapi.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openaiapi.AssistantMessage(m.Content))
		default:
			messages = append(messages, openaiapi.UserMessage(m.Content))
		}
	}

	params := openaiapi.ChatCompletionNewParams{
		Model:    openaiapi.ChatModel(model),
		Messages: messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openaiapi.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaiapi.Int(int64(req.MaxTokens))
	}

	client := o.client(cfg)

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices for model %s", model)
	}

	return &protocol.ChatResponse{
		Content:          completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

func (o *OpenAI) GenerateMedia(ctx context.Context, cfg models.AIProviderConfig, modality protocol.Modality, req protocol.MediaRequest) (*protocol.MediaResult, error) {
	if modality != protocol.ModalityImage {
		return nil, fmt.Errorf("openai provider does not support %s generation", modality)
	}

	params := openaiapi.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openaiapi.ImageModelDallE3,
	}

	if req.Model != "" {
		params.Model = openaiapi.ImageModel(req.Model)
	}

	if req.Size != "" {
		params.Size = openaiapi.ImageGenerateParamsSize(req.Size)
	}

	client := o.client(cfg)

	resp, err := client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai image generation failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no image data")
	}

	return &protocol.MediaResult{
		URL:      resp.Data[0].URL,
		MimeType: "image/png",
	}, nil
}
