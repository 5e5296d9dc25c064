// Package protocol defines the interfaces and contracts between the
// scheduler, the pluggable node processors, and the external capabilities
// they depend on.
package protocol

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/template"
)

// ProcessEnv carries the per-run state a processor may consult: the
// execution context it accounts usage against and the variable resolution
// scope (which includes loop iteration layers when inside a LOOP body).
type ProcessEnv struct {
	Context *models.ExecutionContext
	Scope   template.Scope
	Logger  *slog.Logger
}

// Processor executes one node type. Process never panics and never returns
// a Go error: every failure is captured in the NodeResult.
type Processor interface {
	Type() models.NodeType
	Process(ctx context.Context, node *models.Node, env ProcessEnv) models.NodeResult
}

// ProcessorFactory creates processor instances and provides metadata about
// the node type.
type ProcessorFactory interface {
	// Type returns the node type this factory serves.
	Type() models.NodeType

	// Create builds a processor wired to the given dependencies.
	Create(deps Dependencies) (Processor, error)

	// Schema returns the JSON schema for this node type's config.
	Schema() map[string]any
}

// Dependencies contains the external capabilities processors may need.
// Absent capabilities are nil; processors must fail the node, not the
// process, when a required capability is missing.
type Dependencies struct {
	Logger     *slog.Logger
	AI         AIClient
	AIConfigs  AIConfigSource
	Sandbox    Sandbox
	Notifier   Notifier
	HTTPClient *http.Client
}
