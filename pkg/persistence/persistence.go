// Package persistence provides the data storage abstraction for workflow
// graphs and execution records.
package persistence

import (
	"context"
	"strings"

	"github.com/dagrun/dagrun/pkg/models"
)

// Persistence is the storage boundary the engine depends on. The engine
// only loads graphs, appends/updates execution records, and attaches
// output files; schema design stays behind this interface.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowGraph, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowGraph) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error)
	// PublishedWorkflowByID returns the published variant when one exists,
	// falling back to the draft.
	PublishedWorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error)
	DeleteWorkflow(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	// NonTerminalExecutions returns executions still PENDING or RUNNING,
	// used by the reconciliation sweep.
	NonTerminalExecutions(ctx context.Context) ([]*models.Execution, error)
	AppendOutputFile(ctx context.Context, file *models.OutputFile) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FromURL selects an implementation from a storage URL: postgres://...,
// file://<dir>, or memory://.
func FromURL(ctx context.Context, url string) (Persistence, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgres(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return NewFile(strings.TrimPrefix(url, "file://"))
	default:
		return NewMemory(), nil
	}
}
