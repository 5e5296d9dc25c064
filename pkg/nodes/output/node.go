// Package output provides the terminal node that collects resolved values
// into the execution's reported output payload.
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeOutput
}

// Process resolves each configured field against the current scope. The
// scheduler lifts this node's data into the execution output.
func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	data := make(map[string]any)

	raw, ok := node.Config["fields"].([]any)
	if !ok {
		// No declared fields: report everything visible as globals.
		data = env.Context.Globals()

		return timed(models.SuccessResult(node.ID, data), started)
	}

	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return timed(models.ErrorResult(node.ID, fmt.Sprintf("field %d must be an object", i)), started)
		}

		name, ok := m["name"].(string)
		if !ok || name == "" {
			return timed(models.ErrorResult(node.ID, fmt.Sprintf("field %d missing 'name'", i)), started)
		}

		value, _ := m["value"].(string)
		data[name] = template.Resolve(value, env.Scope)
	}

	return timed(models.SuccessResult(node.ID, data), started)
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
