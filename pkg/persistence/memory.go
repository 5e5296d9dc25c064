package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/dagrun/dagrun/pkg/models"
)

// Memory is an in-process implementation used by tests and single-node
// development setups.
type Memory struct {
	mu         sync.RWMutex
	workflows  map[string]*models.WorkflowGraph
	executions map[string]*models.Execution
	files      map[string][]models.OutputFile // execution id -> files
}

func NewMemory() *Memory {
	return &Memory{
		workflows:  make(map[string]*models.WorkflowGraph),
		executions: make(map[string]*models.Execution),
		files:      make(map[string][]models.OutputFile),
	}
}

func (m *Memory) Workflows(_ context.Context) ([]*models.WorkflowGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.WorkflowGraph, 0, len(m.workflows))
	for _, w := range m.workflows {
		out = append(out, w)
	}

	return out, nil
}

func (m *Memory) SaveWorkflow(_ context.Context, workflow *models.WorkflowGraph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workflows[workflow.ID] = workflow

	return nil
}

func (m *Memory) WorkflowByID(_ context.Context, id string) (*models.WorkflowGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	return w, nil
}

func (m *Memory) PublishedWorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	return m.WorkflowByID(ctx, id)
}

func (m *Memory) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	delete(m.workflows, id)

	return nil
}

func (m *Memory) CreateExecution(_ context.Context, execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *execution
	m.executions[execution.ID] = &cp

	return nil
}

func (m *Memory) UpdateExecution(_ context.Context, execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.executions[execution.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, execution.ID)
	}

	cp := *execution
	m.executions[execution.ID] = &cp

	return nil
}

func (m *Memory) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	cp := *e
	cp.OutputFiles = append(cp.OutputFiles, m.files[id]...)

	return &cp, nil
}

func (m *Memory) NonTerminalExecutions(_ context.Context) ([]*models.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Execution

	for _, e := range m.executions {
		if !e.Status.IsTerminal() {
			cp := *e
			out = append(out, &cp)
		}
	}

	return out, nil
}

func (m *Memory) AppendOutputFile(_ context.Context, file *models.OutputFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[file.ExecutionID] = append(m.files[file.ExecutionID], *file)

	return nil
}

func (m *Memory) HealthCheck(_ context.Context) error {
	return nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}
