// Package queue provides asynchronous workflow execution: enqueued tasks
// are dispatched FIFO to a bounded worker pool and tracked through a
// monotonic pending/running/terminal lifecycle.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/dagrun/dagrun/pkg/models"
)

const (
	DefaultWorkers  = 4
	DefaultCapacity = 1024

	// DefaultSyncTimeout bounds how long a synchronous caller waits; the
	// run itself is not killed when the caller gives up.
	DefaultSyncTimeout = 5 * time.Minute
)

// WorkflowExecutor runs one workflow to a terminal execution. The scheduler
// implements it.
type WorkflowExecutor interface {
	ExecuteWorkflow(ctx context.Context, workflowID, orgID, userID, executionID string, input map[string]any) (*models.Execution, error)
}

// ErrQueueFull is returned when the backlog is at capacity.
var ErrQueueFull = fmt.Errorf("execution queue is full")

// ErrTaskNotFound is returned for unknown task ids.
var ErrTaskNotFound = fmt.Errorf("task not found")

// ErrNotCancellable is returned when cancelling a task that already left the
// pending state.
var ErrNotCancellable = fmt.Errorf("only pending tasks can be cancelled")

type Config struct {
	Workers     int
	Capacity    int
	SyncTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}

	if c.SyncTimeout <= 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
}

type Queue struct {
	executor WorkflowExecutor
	logger   *slog.Logger
	cfg      Config

	pool    *ants.PoolWithFunc
	backlog chan string

	mu    sync.RWMutex
	tasks map[string]*models.Task

	done     map[string]chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
}

func New(executor WorkflowExecutor, logger *slog.Logger, cfg Config) (*Queue, error) {
	cfg.defaults()

	q := &Queue{
		executor: executor,
		logger:   logger,
		cfg:      cfg,
		backlog:  make(chan string, cfg.Capacity),
		tasks:    make(map[string]*models.Task),
		done:     make(map[string]chan struct{}),
		shutdown: make(chan struct{}),
	}

	pool, err := ants.NewPoolWithFunc(cfg.Workers, func(payload any) {
		taskID, ok := payload.(string)
		if !ok {
			return
		}

		q.execute(taskID)
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	q.pool = pool

	q.wg.Add(1)
	go q.dispatch()

	return q, nil
}

// Enqueue registers a pending task and queues it for execution.
func (q *Queue) Enqueue(_ context.Context, workflowID, orgID, userID string, input map[string]any) (*models.Task, error) {
	now := time.Now().UTC()

	task := &models.Task{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		OrgID:      orgID,
		UserID:     userID,
		Status:     models.TaskStatusPending,
		Input:      input,
		CreatedAt:  now,
	}

	q.mu.Lock()
	q.tasks[task.ID] = task
	q.done[task.ID] = make(chan struct{})
	q.mu.Unlock()

	select {
	case q.backlog <- task.ID:
	default:
		q.mu.Lock()
		delete(q.tasks, task.ID)
		delete(q.done, task.ID)
		q.mu.Unlock()

		return nil, ErrQueueFull
	}

	q.logger.Info("task enqueued", "task_id", task.ID, "workflow_id", workflowID)

	return task.Clone(), nil
}

// Task returns a copy of the task's current state.
func (q *Queue) Task(_ context.Context, taskID string) (*models.Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	return task.Clone(), nil
}

// Cancel cancels a pending task. Running tasks are past the point of no
// return and terminal tasks are immutable.
func (q *Queue) Cancel(_ context.Context, taskID string) (*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	if task.Status != models.TaskStatusPending {
		return nil, ErrNotCancellable
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusFailed
	task.Error = "cancelled before execution"
	task.FinishedAt = &now

	if ch, ok := q.done[taskID]; ok {
		close(ch)
		delete(q.done, taskID)
	}

	return task.Clone(), nil
}

// ExecuteSync enqueues a task and waits for it to finish, bounded by the
// configured timeout. On timeout the task keeps running; the caller gets the
// task id to poll.
func (q *Queue) ExecuteSync(ctx context.Context, workflowID, orgID, userID string, input map[string]any) (*models.Task, error) {
	task, err := q.Enqueue(ctx, workflowID, orgID, userID, input)
	if err != nil {
		return nil, err
	}

	q.mu.RLock()
	doneCh := q.done[task.ID]
	q.mu.RUnlock()

	timer := time.NewTimer(q.cfg.SyncTimeout)
	defer timer.Stop()

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-timer.C:
			return q.Task(ctx, task.ID)
		case <-ctx.Done():
			return q.Task(context.WithoutCancel(ctx), task.ID)
		}
	}

	return q.Task(ctx, task.ID)
}

// Shutdown stops accepting work and waits for the dispatcher to drain.
func (q *Queue) Shutdown() {
	close(q.shutdown)
	q.wg.Wait()
	q.pool.Release()
}

// dispatch feeds the backlog to the pool. Invoke blocks when all workers are
// busy, which preserves FIFO start order.
func (q *Queue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case <-q.shutdown:
			return
		case taskID := <-q.backlog:
			if err := q.pool.Invoke(taskID); err != nil {
				q.logger.Error("dispatch task", "task_id", taskID, "error", err)
				q.fail(taskID, "dispatch failed: "+err.Error())
			}
		}
	}
}

// claim transitions pending to running. A task cancelled while queued loses
// the race here and is never executed.
func (q *Queue) claim(taskID string) (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok || task.Status != models.TaskStatusPending {
		return nil, false
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusRunning
	task.ExecutionID = uuid.NewString()
	task.StartedAt = &now

	return task.Clone(), true
}

func (q *Queue) execute(taskID string) {
	task, ok := q.claim(taskID)
	if !ok {
		return
	}

	ctx := context.Background()

	execution, err := q.executor.ExecuteWorkflow(ctx, task.WorkflowID, task.OrgID, task.UserID, task.ExecutionID, task.Input)

	q.mu.Lock()

	stored, exists := q.tasks[taskID]
	if exists {
		now := time.Now().UTC()
		stored.FinishedAt = &now

		switch {
		case err != nil:
			stored.Status = models.TaskStatusFailed
			stored.Error = err.Error()
		case execution.Status == models.ExecutionStatusFailed:
			stored.Status = models.TaskStatusFailed
			stored.Error = execution.Error
			stored.Result = execution.Output
		default:
			stored.Status = models.TaskStatusCompleted
			stored.Result = execution.Output
		}
	}

	if ch, ok := q.done[taskID]; ok {
		close(ch)
		delete(q.done, taskID)
	}

	q.mu.Unlock()

	if err != nil {
		q.logger.Error("task failed", "task_id", taskID, "error", err)
	}
}

func (q *Queue) fail(taskID, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok || task.Status.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusFailed
	task.Error = message
	task.FinishedAt = &now

	if ch, ok := q.done[taskID]; ok {
		close(ch)
		delete(q.done, taskID)
	}
}
