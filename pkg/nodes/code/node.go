// Package code provides the node that runs user-supplied code in the
// sandbox service.
package code

import (
	"context"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

const defaultTimeout = 30 * time.Second

type Processor struct {
	sandbox protocol.Sandbox
}

func New(deps protocol.Dependencies) *Processor {
	return &Processor{sandbox: deps.Sandbox}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeCode
}

// Process runs the configured snippet in the sandbox. Variables referenced
// in the code are passed as structured input, not spliced into the source.
func (p *Processor) Process(ctx context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	if p.sandbox == nil {
		return timed(models.ErrorResult(node.ID, "code sandbox is not configured"), started)
	}

	source, ok := node.Config["code"].(string)
	if !ok || source == "" {
		return timed(models.ErrorResult(node.ID, "'code' is required"), started)
	}

	language := "javascript"
	if v, ok := node.Config["language"].(string); ok && v != "" {
		language = v
	}

	timeout := defaultTimeout

	switch v := node.Config["timeout_ms"].(type) {
	case float64:
		if v > 0 {
			timeout = time.Duration(v) * time.Millisecond
		}
	case int:
		if v > 0 {
			timeout = time.Duration(v) * time.Millisecond
		}
	}

	input := make(map[string]any)
	if scope, ok := env.Scope.(template.EnvScope); ok {
		input = scope.Env()
	}

	result, err := p.sandbox.Execute(ctx, protocol.SandboxRequest{
		Language: language,
		Code:     source,
		Input:    input,
		Timeout:  timeout,
	})
	if err != nil {
		return timed(models.ErrorResult(node.ID, "sandbox: "+err.Error()), started)
	}

	data := map[string]any{"output": result.Output}
	if len(result.Logs) > 0 {
		data["logs"] = result.Logs
	}

	if result.Error != "" {
		// Logs collected before the failure stay visible on the node.
		failed := models.ErrorResult(node.ID, result.Error)
		failed.Data = data

		return timed(failed, started)
	}

	return timed(models.SuccessResult(node.ID, data), started)
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
