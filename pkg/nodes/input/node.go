// Package input provides the entry node that seeds global variables from
// configured fields and invocation overrides.
package input

import (
	"context"
	"fmt"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

// Field is one declared input with an optional default.
type Field struct {
	Name     string `json:"name"`
	Value    any    `json:"value,omitempty"`
	Required bool   `json:"required"`
}

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeInput
}

// Process copies configured field values, overridden by invocation input,
// into the global variable map. A missing required field fails the node
// and names the field.
func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	fields, err := parseFields(node.Config)
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	data := make(map[string]any, len(fields))

	for _, field := range fields {
		value := field.Value

		// Invocation input overrides the configured default.
		if override, ok := env.Context.Global(field.Name); ok {
			value = override
		}

		if value == nil {
			if field.Required {
				return timed(models.ErrorResult(node.ID, fmt.Sprintf("required input field %q is missing", field.Name)), started)
			}

			continue
		}

		env.Context.SetGlobal(field.Name, value)
		data[field.Name] = value
	}

	return timed(models.SuccessResult(node.ID, data), started)
}

func parseFields(config map[string]any) ([]Field, error) {
	raw, ok := config["fields"].([]any)
	if !ok {
		return nil, nil
	}

	fields := make([]Field, 0, len(raw))

	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %d must be an object", i)
		}

		name, ok := m["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("field %d missing 'name'", i)
		}

		field := Field{Name: name, Value: m["value"]}

		if required, ok := m["required"].(bool); ok {
			field.Required = required
		}

		fields = append(fields, field)
	}

	return fields, nil
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
