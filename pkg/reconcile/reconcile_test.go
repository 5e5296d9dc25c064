package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/persistence"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedExecution(t *testing.T, store persistence.Persistence, id string, status models.ExecutionStatus, age time.Duration) {
	t.Helper()

	created := time.Now().UTC().Add(-age)
	execution := &models.Execution{
		ID:         id,
		WorkflowID: "wf",
		Status:     status,
		CreatedAt:  created,
	}

	if status == models.ExecutionStatusRunning {
		execution.StartedAt = &created
	}

	require.NoError(t, store.CreateExecution(context.Background(), execution))
}

func TestSweepInterruptedFailsAllNonTerminal(t *testing.T) {
	store := persistence.NewMemory()
	seedExecution(t, store, "running", models.ExecutionStatusRunning, time.Minute)
	seedExecution(t, store, "pending", models.ExecutionStatusPending, time.Minute)
	seedExecution(t, store, "done", models.ExecutionStatusCompleted, time.Minute)

	r := New(store, testLogger(), 0)

	repaired, err := r.SweepInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	for _, id := range []string{"running", "pending"} {
		execution, err := store.ExecutionByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
		assert.Contains(t, execution.Error, "interrupted")
		assert.NotNil(t, execution.CompletedAt)
	}

	// Terminal records are untouched.
	done, err := store.ExecutionByID(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, done.Status)
	assert.Empty(t, done.Error)
}

func TestSweepStuckHonorsDeadline(t *testing.T) {
	store := persistence.NewMemory()
	seedExecution(t, store, "old", models.ExecutionStatusRunning, time.Hour)
	seedExecution(t, store, "fresh", models.ExecutionStatusRunning, time.Minute)

	r := New(store, testLogger(), 30*time.Minute)

	repaired, err := r.SweepStuck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	old, err := store.ExecutionByID(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, old.Status)

	fresh, err := store.ExecutionByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, fresh.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := persistence.NewMemory()
	seedExecution(t, store, "running", models.ExecutionStatusRunning, time.Minute)

	r := New(store, testLogger(), 0)

	repaired, err := r.SweepInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	repaired, err = r.SweepInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}
