package protocol

import (
	"context"
	"time"
)

// SandboxRequest describes one bounded code execution.
type SandboxRequest struct {
	Language string         `json:"language"`
	Code     string         `json:"code"`
	Input    map[string]any `json:"input,omitempty"`
	Timeout  time.Duration  `json:"-"`
}

// SandboxResult separates the returned value from captured logs. Error is
// set for timeouts and thrown exceptions; logs collected up to that point
// are preserved.
type SandboxResult struct {
	Output any      `json:"output"`
	Logs   []string `json:"logs,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Sandbox executes user-supplied code in a constrained runtime with bounded
// execution time and output size.
type Sandbox interface {
	Execute(ctx context.Context, req SandboxRequest) (*SandboxResult, error)
}
