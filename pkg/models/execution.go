package models

import "time"

// ExecutionStatus represents the lifecycle state of one workflow run.
// Terminal states are immutable except for the reconciliation sweep, which
// forces RUNNING/PENDING records to FAILED after a crash.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is the persisted record of one workflow run.
type Execution struct {
	ID               string          `json:"id"`
	WorkflowID       string          `json:"workflow_id"`
	OrgID            string          `json:"org_id,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	Status           ExecutionStatus `json:"status"`
	Input            map[string]any  `json:"input,omitempty"`
	Output           map[string]any  `json:"output,omitempty"`
	Error            string          `json:"error,omitempty"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	Cost             float64         `json:"cost"`
	DurationMs       int64           `json:"duration_ms"`
	OutputFiles      []OutputFile    `json:"output_files,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// OutputFile is a file artifact produced by a node (generated media,
// sandbox output) and attached to its execution.
type OutputFile struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	NodeID      string    `json:"node_id,omitempty"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	MimeType    string    `json:"mime_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
