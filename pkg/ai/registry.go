// Package ai implements the uniform chat/generate capability over the
// concrete AI providers.
package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

// Registry routes requests to the provider named in the resolved config.
// It implements protocol.AIClient so processors stay provider-agnostic.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]protocol.AIClient
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]protocol.AIClient)}
}

// Register binds a provider implementation to a provider name.
func (r *Registry) Register(name string, client protocol.AIClient) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = client
}

func (r *Registry) provider(name string) (protocol.AIClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("ai provider %q not registered", name)
	}

	return client, nil
}

func (r *Registry) Chat(ctx context.Context, cfg models.AIProviderConfig, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	client, err := r.provider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	return client.Chat(ctx, cfg, req)
}

func (r *Registry) GenerateMedia(ctx context.Context, cfg models.AIProviderConfig, modality protocol.Modality, req protocol.MediaRequest) (*protocol.MediaResult, error) {
	client, err := r.provider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	return client.GenerateMedia(ctx, cfg, modality, req)
}
