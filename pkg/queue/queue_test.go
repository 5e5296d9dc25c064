package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrun/dagrun/pkg/models"
)

type fakeExecutor struct {
	mu      sync.Mutex
	order   []string
	block   chan struct{}
	delay   time.Duration
	failAll bool
}

func (f *fakeExecutor) ExecuteWorkflow(_ context.Context, workflowID, _, _, executionID string, _ map[string]any) (*models.Execution, error) {
	f.mu.Lock()
	f.order = append(f.order, workflowID)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	status := models.ExecutionStatusCompleted
	errMsg := ""

	if f.failAll {
		status = models.ExecutionStatusFailed
		errMsg = "boom"
	}

	return &models.Execution{
		ID:         executionID,
		WorkflowID: workflowID,
		Status:     status,
		Error:      errMsg,
		Output:     map[string]any{"ok": !f.failAll},
	}, nil
}

func (f *fakeExecutor) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.order...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(t *testing.T, executor WorkflowExecutor, cfg Config) *Queue {
	t.Helper()

	q, err := New(executor, testLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(q.Shutdown)

	return q
}

func TestExecuteSyncCompletesTask(t *testing.T) {
	executor := &fakeExecutor{}
	q := newTestQueue(t, executor, Config{Workers: 2, SyncTimeout: 5 * time.Second})

	task, err := q.ExecuteSync(context.Background(), "wf", "org", "user", map[string]any{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, true, task.Result["ok"])
	assert.NotEmpty(t, task.ExecutionID)
}

func TestExecuteSyncPropagatesExecutionFailure(t *testing.T) {
	executor := &fakeExecutor{failAll: true}
	q := newTestQueue(t, executor, Config{Workers: 1, SyncTimeout: 5 * time.Second})

	task, err := q.ExecuteSync(context.Background(), "wf", "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, "boom", task.Error)
}

func TestExecuteSyncTimeoutLeavesTaskRunning(t *testing.T) {
	executor := &fakeExecutor{delay: 300 * time.Millisecond}
	q := newTestQueue(t, executor, Config{Workers: 1, SyncTimeout: 30 * time.Millisecond})

	task, err := q.ExecuteSync(context.Background(), "wf", "", "", nil)
	require.NoError(t, err)

	// The caller timed out but the run was not killed.
	assert.False(t, task.Status.IsTerminal())

	require.Eventually(t, func() bool {
		latest, err := q.Task(context.Background(), task.ID)

		return err == nil && latest.Status == models.TaskStatusCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTasksStartInFIFOOrder(t *testing.T) {
	executor := &fakeExecutor{}
	q := newTestQueue(t, executor, Config{Workers: 1, SyncTimeout: time.Second})

	var ids []string

	for _, wf := range []string{"wf1", "wf2", "wf3"} {
		task, err := q.Enqueue(context.Background(), wf, "", "", nil)
		require.NoError(t, err)

		ids = append(ids, task.ID)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			task, err := q.Task(context.Background(), id)
			if err != nil || !task.Status.IsTerminal() {
				return false
			}
		}

		return true
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"wf1", "wf2", "wf3"}, executor.started())
}

func TestCancelPendingTask(t *testing.T) {
	block := make(chan struct{})
	executor := &fakeExecutor{block: block}
	q := newTestQueue(t, executor, Config{Workers: 1, SyncTimeout: time.Second})

	// Occupy the single worker so the next task stays pending.
	first, err := q.Enqueue(context.Background(), "wf1", "", "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, err := q.Task(context.Background(), first.ID)

		return err == nil && task.Status == models.TaskStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	second, err := q.Enqueue(context.Background(), "wf2", "", "", nil)
	require.NoError(t, err)

	cancelled, err := q.Cancel(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, cancelled.Status)
	assert.Equal(t, "cancelled before execution", cancelled.Error)

	close(block)

	// The cancelled task is never executed.
	require.Eventually(t, func() bool {
		task, err := q.Task(context.Background(), first.ID)

		return err == nil && task.Status == models.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"wf1"}, executor.started())
}

func TestCancelRunningTaskRejected(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	executor := &fakeExecutor{block: block}
	q := newTestQueue(t, executor, Config{Workers: 1, SyncTimeout: time.Second})

	task, err := q.Enqueue(context.Background(), "wf", "", "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		latest, err := q.Task(context.Background(), task.ID)

		return err == nil && latest.Status == models.TaskStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	_, err = q.Cancel(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelUnknownTask(t *testing.T) {
	q := newTestQueue(t, &fakeExecutor{}, Config{})

	_, err := q.Cancel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestEnqueueFullQueue(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	executor := &fakeExecutor{block: block}
	q := newTestQueue(t, executor, Config{Workers: 1, Capacity: 1, SyncTimeout: time.Second})

	// With the single worker blocked, capacity is exhausted after at most
	// one running task, one held by the dispatcher and one backlog slot.
	var sawFull bool

	for i := 0; i < 5; i++ {
		if _, err := q.Enqueue(context.Background(), "wf", "", "", nil); errors.Is(err, ErrQueueFull) {
			sawFull = true

			break
		}
	}

	assert.True(t, sawFull)
}
