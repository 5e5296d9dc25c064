package web

import (
	"github.com/dagrun/dagrun/pkg/models"
)

// CreateWorkflowRequest is the POST /workflows payload.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=1,max=200"`
	Description string         `json:"description" validate:"max=2000"`
	OrgID       string         `json:"org_id"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
	Variables   map[string]any `json:"variables"`
}

// UpdateWorkflowRequest is the PATCH /workflows/:id payload. Nil fields are
// left untouched.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name"        validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
	Variables   map[string]any `json:"variables"`
}

// ExecuteRequest triggers a workflow run, synchronous or queued.
type ExecuteRequest struct {
	Input     map[string]any `json:"input"`
	UserID    string         `json:"user_id"`
	TimeoutMs int            `json:"timeout_ms" validate:"omitempty,min=1,max=3600000"`
}

// TaskResponse is the task state returned by queue endpoints.
type TaskResponse struct {
	Task      *models.Task      `json:"task"`
	Execution *models.Execution `json:"execution,omitempty"`
}
