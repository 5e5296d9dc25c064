// Package trigger provides the entry node for externally triggered runs:
// it exposes the triggering payload as its output.
package trigger

import (
	"context"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeTrigger
}

// Process snapshots the global variables seeded from the triggering input
// so downstream nodes can reference them through this node's name.
func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	result := models.SuccessResult(node.ID, env.Context.Globals())
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
