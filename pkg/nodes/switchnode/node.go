// Package switchnode provides the multi-way branch node: a resolved value is
// matched against case labels and the matching branch is selected.
package switchnode

import (
	"context"
	"fmt"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

// DefaultBranch labels the edge followed when no case matches.
const DefaultBranch = "default"

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeSwitch
}

func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	valueExpr, ok := node.Config["value"].(string)
	if !ok || valueExpr == "" {
		return timed(models.ErrorResult(node.ID, "'value' is required"), started)
	}

	cases, err := parseCases(node.Config["cases"])
	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	value := template.Resolve(valueExpr, env.Scope)

	branch := DefaultBranch

	for _, c := range cases {
		if value == c {
			branch = c

			break
		}
	}

	return timed(models.SuccessResult(node.ID, map[string]any{
		"value":  value,
		"branch": branch,
	}), started)
}

func parseCases(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("'cases' must be a non-empty array")
	}

	cases := make([]string, 0, len(items))

	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("case %d must be a non-empty string", i)
		}

		cases = append(cases, s)
	}

	return cases, nil
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
