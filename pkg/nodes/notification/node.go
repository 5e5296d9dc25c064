// Package notification provides the side-channel delivery node. Delivery is
// best-effort: a failed send is recorded on the node but the scheduler does
// not treat it as a blocking failure for downstream nodes.
package notification

import (
	"context"
	"time"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

type Processor struct {
	notifier protocol.Notifier
}

func New(deps protocol.Dependencies) *Processor {
	return &Processor{notifier: deps.Notifier}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeNotification
}

func (p *Processor) Process(ctx context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	if p.notifier == nil {
		return timed(models.ErrorResult(node.ID, "no notifier configured"), started)
	}

	message, ok := node.Config["message"].(string)
	if !ok || message == "" {
		return timed(models.ErrorResult(node.ID, "'message' is required"), started)
	}

	n := protocol.Notification{
		Channel: "log",
		Message: template.Resolve(message, env.Scope),
	}

	if v, ok := node.Config["channel"].(string); ok && v != "" {
		n.Channel = v
	}

	if v, ok := node.Config["target"].(string); ok {
		n.Target = template.Resolve(v, env.Scope)
	}

	if v, ok := node.Config["subject"].(string); ok {
		n.Subject = template.Resolve(v, env.Scope)
	}

	if err := p.notifier.Send(ctx, n); err != nil {
		if env.Logger != nil {
			env.Logger.Warn("notification delivery failed",
				"node_id", node.ID, "channel", n.Channel, "error", err)
		}

		return timed(models.ErrorResult(node.ID, "send notification: "+err.Error()), started)
	}

	return timed(models.SuccessResult(node.ID, map[string]any{
		"channel":   n.Channel,
		"delivered": true,
	}), started)
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
