package models

import "time"

// TaskStatus represents the state of a queued execution request.
// Transitions are monotonic: pending -> running -> completed|failed.
// A cancelled task goes straight from pending to failed; once a worker has
// claimed it, cancellation is no longer honored.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether the task reached a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is an in-memory queue entry for one asynchronous execution.
type Task struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	OrgID       string         `json:"org_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Status      TaskStatus     `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// Clone returns a shallow copy safe to hand to callers while the queue
// keeps mutating the original under its own lock.
func (t *Task) Clone() *Task {
	cp := *t

	return &cp
}
