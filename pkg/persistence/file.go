package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dagrun/dagrun/pkg/models"
)

// File stores each workflow and execution as one JSON document under a
// root directory. Good enough for local development; not safe across
// multiple processes.
type File struct {
	root string
	mu   sync.Mutex
}

func NewFile(root string) (*File, error) {
	for _, dir := range []string{"workflows", "executions"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return &File{root: root}, nil
}

func (f *File) workflowPath(id string) string {
	return filepath.Join(f.root, "workflows", id+".json")
}

func (f *File) executionPath(id string) string {
	return filepath.Join(f.root, "executions", id+".json")
}

func (f *File) Workflows(_ context.Context) ([]*models.WorkflowGraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(f.root, "workflows"))
	if err != nil {
		return nil, err
	}

	var out []*models.WorkflowGraph

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var w models.WorkflowGraph
		if err := readJSON(filepath.Join(f.root, "workflows", entry.Name()), &w); err != nil {
			return nil, err
		}

		out = append(out, &w)
	}

	return out, nil
}

func (f *File) SaveWorkflow(_ context.Context, workflow *models.WorkflowGraph) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return writeJSON(f.workflowPath(workflow.ID), workflow)
}

func (f *File) WorkflowByID(_ context.Context, id string) (*models.WorkflowGraph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var w models.WorkflowGraph

	if err := readJSON(f.workflowPath(id), &w); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
		}

		return nil, err
	}

	return &w, nil
}

func (f *File) PublishedWorkflowByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	return f.WorkflowByID(ctx, id)
}

func (f *File) DeleteWorkflow(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.workflowPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
		}

		return err
	}

	return nil
}

func (f *File) CreateExecution(_ context.Context, execution *models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return writeJSON(f.executionPath(execution.ID), execution)
}

func (f *File) UpdateExecution(_ context.Context, execution *models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.executionPath(execution.ID)); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, execution.ID)
	}

	return writeJSON(f.executionPath(execution.ID), execution)
}

func (f *File) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var e models.Execution

	if err := readJSON(f.executionPath(id), &e); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
		}

		return nil, err
	}

	return &e, nil
}

func (f *File) NonTerminalExecutions(_ context.Context) ([]*models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(f.root, "executions"))
	if err != nil {
		return nil, err
	}

	var out []*models.Execution

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var e models.Execution
		if err := readJSON(filepath.Join(f.root, "executions", entry.Name()), &e); err != nil {
			return nil, err
		}

		if !e.Status.IsTerminal() {
			out = append(out, &e)
		}
	}

	return out, nil
}

func (f *File) AppendOutputFile(ctx context.Context, file *models.OutputFile) error {
	f.mu.Lock()

	var e models.Execution

	if err := readJSON(f.executionPath(file.ExecutionID), &e); err != nil {
		f.mu.Unlock()

		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, file.ExecutionID)
		}

		return err
	}

	e.OutputFiles = append(e.OutputFiles, *file)
	err := writeJSON(f.executionPath(file.ExecutionID), &e)
	f.mu.Unlock()

	return err
}

func (f *File) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(f.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (f *File) Close(_ context.Context) error {
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
