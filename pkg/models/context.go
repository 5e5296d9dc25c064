package models

import (
	"fmt"
	"sync"
)

// AIProviderConfig holds resolved credentials and defaults for one AI
// provider, cached per execution so repeated PROCESS nodes do not resolve
// them again.
type AIProviderConfig struct {
	Provider string            `json:"provider"`
	APIKey   string            `json:"-"`
	BaseURL  string            `json:"base_url,omitempty"`
	Model    string            `json:"model,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// ExecutionContext is the per-run mutable state, owned exclusively by the
// scheduler run executing it and discarded on completion. Node outputs are
// append-only: once a node completes its entry is never overwritten, which
// keeps variable resolution deterministic for downstream nodes. Token and
// cost counters only ever increase.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string

	mu               sync.RWMutex
	nodeOutputs      map[string]map[string]any
	globalVariables  map[string]any
	aiConfigs        map[string]AIProviderConfig
	promptTokens     int
	completionTokens int
	cost             float64
}

// NewExecutionContext creates the context for one run, seeding global
// variables from the workflow's variables and the triggering input.
func NewExecutionContext(executionID, workflowID string, variables, input map[string]any) *ExecutionContext {
	globals := make(map[string]any, len(variables)+len(input))

	for k, v := range variables {
		globals[k] = v
	}

	for k, v := range input {
		globals[k] = v
	}

	return &ExecutionContext{
		ExecutionID:     executionID,
		WorkflowID:      workflowID,
		nodeOutputs:     make(map[string]map[string]any),
		globalVariables: globals,
		aiConfigs:       make(map[string]AIProviderConfig),
	}
}

// SetNodeOutput records a completed node's output. Outputs are append-only;
// writing twice for the same node id is a scheduler bug and is rejected.
func (c *ExecutionContext) SetNodeOutput(nodeID string, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodeOutputs[nodeID]; exists {
		return fmt.Errorf("output for node %q already recorded", nodeID)
	}

	c.nodeOutputs[nodeID] = data

	return nil
}

// NodeOutput returns the recorded output for a node id.
func (c *ExecutionContext) NodeOutput(nodeID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out, ok := c.nodeOutputs[nodeID]

	return out, ok
}

// SetGlobal sets a global variable.
func (c *ExecutionContext) SetGlobal(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.globalVariables[name] = value
}

// Global returns a global variable by name.
func (c *ExecutionContext) Global(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.globalVariables[name]

	return v, ok
}

// Globals returns a copy of the global variable map.
func (c *ExecutionContext) Globals() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make(map[string]any, len(c.globalVariables))
	for k, v := range c.globalVariables {
		cp[k] = v
	}

	return cp
}

// AIConfig returns the cached provider config, if resolved before.
func (c *ExecutionContext) AIConfig(providerID string) (AIProviderConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.aiConfigs[providerID]

	return cfg, ok
}

// PutAIConfig caches a resolved provider config. The first resolution wins;
// the cache is read-only afterwards for the rest of the run.
func (c *ExecutionContext) PutAIConfig(providerID string, cfg AIProviderConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.aiConfigs[providerID]; exists {
		return
	}

	c.aiConfigs[providerID] = cfg
}

// AddUsage accumulates token counts and estimated cost. Negative deltas are
// ignored: the counters are monotonic.
func (c *ExecutionContext) AddUsage(promptTokens, completionTokens int, cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if promptTokens > 0 {
		c.promptTokens += promptTokens
	}

	if completionTokens > 0 {
		c.completionTokens += completionTokens
	}

	if cost > 0 {
		c.cost += cost
	}
}

// Usage returns the accumulated prompt, completion and total token counts
// plus the estimated cost.
func (c *ExecutionContext) Usage() (prompt, completion, total int, cost float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.promptTokens, c.completionTokens, c.promptTokens + c.completionTokens, c.cost
}
