package process

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

type fakeAI struct {
	lastChat  protocol.ChatRequest
	lastMedia protocol.MediaRequest
	chatErr   error
}

func (f *fakeAI) Chat(_ context.Context, _ models.AIProviderConfig, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	f.lastChat = req

	if f.chatErr != nil {
		return nil, f.chatErr
	}

	return &protocol.ChatResponse{Content: "generated text", PromptTokens: 100, CompletionTokens: 40}, nil
}

func (f *fakeAI) GenerateMedia(_ context.Context, _ models.AIProviderConfig, _ protocol.Modality, req protocol.MediaRequest) (*protocol.MediaResult, error) {
	f.lastMedia = req

	return &protocol.MediaResult{URL: "https://cdn.example/img.png", MimeType: "image/png"}, nil
}

type fakeConfigs struct {
	resolves atomic.Int32
}

func (f *fakeConfigs) Resolve(_ context.Context, providerID string) (models.AIProviderConfig, error) {
	f.resolves.Add(1)

	return models.AIProviderConfig{Provider: providerID, APIKey: "key", Model: "gpt-4o-mini"}, nil
}

func processNode(nodeType models.NodeType, config map[string]any) *models.Node {
	return &models.Node{ID: "gen", Type: nodeType, Name: "gen", Enabled: true, Config: config}
}

func env(ec *models.ExecutionContext) protocol.ProcessEnv {
	graph := &models.WorkflowGraph{ID: "wf", Name: "wf"}

	return protocol.ProcessEnv{Context: ec, Scope: template.NewContextScope(graph, ec)}
}

func TestChatAccountsUsage(t *testing.T) {
	client := &fakeAI{}
	configs := &fakeConfigs{}
	p := New(protocol.Dependencies{AI: client, AIConfigs: configs})

	ec := models.NewExecutionContext("ex", "wf", map[string]any{"topic": "tea"}, nil)

	result := p.Process(context.Background(), processNode(models.NodeTypeProcess, map[string]any{
		"prompt": "write about {{topic}}",
	}), env(ec))

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "generated text", result.Data["text"])
	assert.Equal(t, "write about tea", client.lastChat.Messages[len(client.lastChat.Messages)-1].Content)

	prompt, completion, total, cost := ec.Usage()
	assert.Equal(t, 100, prompt)
	assert.Equal(t, 40, completion)
	assert.Equal(t, 140, total)
	assert.Greater(t, cost, 0.0)
}

func TestProviderConfigResolvedOncePerExecution(t *testing.T) {
	client := &fakeAI{}
	configs := &fakeConfigs{}
	p := New(protocol.Dependencies{AI: client, AIConfigs: configs})

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	for i := 0; i < 3; i++ {
		node := processNode(models.NodeTypeProcess, map[string]any{"prompt": "p"})
		node.ID = fmt.Sprintf("gen-%d", i)

		result := p.Process(context.Background(), node, env(ec))
		require.Equal(t, models.ResultStatusSuccess, result.Status)
	}

	assert.Equal(t, int32(1), configs.resolves.Load())
}

func TestSystemPromptIncluded(t *testing.T) {
	client := &fakeAI{}
	p := New(protocol.Dependencies{AI: client, AIConfigs: &fakeConfigs{}})

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	result := p.Process(context.Background(), processNode(models.NodeTypeProcess, map[string]any{
		"prompt":        "user text",
		"system_prompt": "you are terse",
	}), env(ec))

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	require.Len(t, client.lastChat.Messages, 2)
	assert.Equal(t, "system", client.lastChat.Messages[0].Role)
}

func TestChatFailureFailsNode(t *testing.T) {
	client := &fakeAI{chatErr: errors.New("rate limited")}
	p := New(protocol.Dependencies{AI: client, AIConfigs: &fakeConfigs{}})

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	result := p.Process(context.Background(), processNode(models.NodeTypeProcess, map[string]any{
		"prompt": "p",
	}), env(ec))

	assert.Equal(t, models.ResultStatusError, result.Status)
	assert.Contains(t, result.Error, "rate limited")

	_, _, total, _ := ec.Usage()
	assert.Zero(t, total)
}

func TestImageNodeProducesFile(t *testing.T) {
	client := &fakeAI{}
	factory := NewMediaFactory(models.NodeTypeImage)

	proc, err := factory.Create(protocol.Dependencies{AI: client, AIConfigs: &fakeConfigs{}})
	require.NoError(t, err)

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	result := proc.Process(context.Background(), processNode(models.NodeTypeImage, map[string]any{
		"prompt": "a lighthouse",
		"size":   "1024x1024",
	}), env(ec))

	require.Equal(t, models.ResultStatusSuccess, result.Status)
	assert.Equal(t, "https://cdn.example/img.png", result.Data["url"])
	assert.Equal(t, "1024x1024", client.lastMedia.Size)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "ex", result.Files[0].ExecutionID)
	assert.Equal(t, "image/png", result.Files[0].MimeType)
}

func TestMissingPromptFails(t *testing.T) {
	p := New(protocol.Dependencies{AI: &fakeAI{}, AIConfigs: &fakeConfigs{}})

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	result := p.Process(context.Background(), processNode(models.NodeTypeProcess, map[string]any{}), env(ec))

	assert.Equal(t, models.ResultStatusError, result.Status)
}

func TestNoClientFailsNode(t *testing.T) {
	p := New(protocol.Dependencies{})

	ec := models.NewExecutionContext("ex", "wf", nil, nil)

	result := p.Process(context.Background(), processNode(models.NodeTypeProcess, map[string]any{
		"prompt": "p",
	}), env(ec))

	assert.Equal(t, models.ResultStatusError, result.Status)
}
