package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
)

func sampleWorkflow(id string) *models.WorkflowGraph {
	return &models.WorkflowGraph{
		ID:     id,
		Name:   "sample",
		Status: models.WorkflowStatusDraft,
		Nodes: []*models.Node{
			{ID: "out", Type: models.NodeTypeOutput, Name: "out", Enabled: true},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func sampleExecution(id string, status models.ExecutionStatus) *models.Execution {
	return &models.Execution{
		ID:         id,
		WorkflowID: "wf",
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
}

func stores(t *testing.T) map[string]Persistence {
	t.Helper()

	file, err := NewFile(t.TempDir())
	require.NoError(t, err)

	return map[string]Persistence{
		"memory": NewMemory(),
		"file":   file,
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveWorkflow(ctx, sampleWorkflow("wf-1")))

			got, err := store.WorkflowByID(ctx, "wf-1")
			require.NoError(t, err)
			assert.Equal(t, "sample", got.Name)
			require.Len(t, got.Nodes, 1)
			assert.Equal(t, models.NodeTypeOutput, got.Nodes[0].Type)

			all, err := store.Workflows(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, store.DeleteWorkflow(ctx, "wf-1"))

			_, err = store.WorkflowByID(ctx, "wf-1")
			assert.ErrorIs(t, err, ErrWorkflowNotFound)
		})
	}
}

func TestDeleteMissingWorkflow(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.DeleteWorkflow(context.Background(), "absent")
			assert.ErrorIs(t, err, ErrWorkflowNotFound)
		})
	}
}

func TestExecutionRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-1", models.ExecutionStatusPending)))

			updated := sampleExecution("ex-1", models.ExecutionStatusCompleted)
			updated.Output = map[string]any{"answer": "42"}
			require.NoError(t, store.UpdateExecution(ctx, updated))

			got, err := store.ExecutionByID(ctx, "ex-1")
			require.NoError(t, err)
			assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
			assert.Equal(t, "42", got.Output["answer"])
		})
	}
}

func TestUpdateMissingExecution(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.UpdateExecution(context.Background(), sampleExecution("absent", models.ExecutionStatusCompleted))
			assert.ErrorIs(t, err, ErrExecutionNotFound)
		})
	}
}

func TestNonTerminalExecutions(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-p", models.ExecutionStatusPending)))
			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-r", models.ExecutionStatusRunning)))
			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-c", models.ExecutionStatusCompleted)))
			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-f", models.ExecutionStatusFailed)))

			open, err := store.NonTerminalExecutions(ctx)
			require.NoError(t, err)
			require.Len(t, open, 2)

			ids := map[string]bool{}
			for _, e := range open {
				ids[e.ID] = true
			}

			assert.True(t, ids["ex-p"])
			assert.True(t, ids["ex-r"])
		})
	}
}

func TestAppendOutputFile(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.CreateExecution(ctx, sampleExecution("ex-1", models.ExecutionStatusRunning)))

			require.NoError(t, store.AppendOutputFile(ctx, &models.OutputFile{
				ID:          "f-1",
				ExecutionID: "ex-1",
				Name:        "image-gen",
				URL:         "https://cdn.example/a.png",
				MimeType:    "image/png",
			}))

			got, err := store.ExecutionByID(ctx, "ex-1")
			require.NoError(t, err)
			require.Len(t, got.OutputFiles, 1)
			assert.Equal(t, "f-1", got.OutputFiles[0].ID)
		})
	}
}

func TestFromURLSelectsBackend(t *testing.T) {
	ctx := context.Background()

	mem, err := FromURL(ctx, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	file, err := FromURL(ctx, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &File{}, file)
}
