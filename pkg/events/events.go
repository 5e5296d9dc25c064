// Package events defines event types and structures for execution
// lifecycle notifications.
package events

import (
	"time"

	"github.com/dagrun/dagrun/pkg/models"
)

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "dagrun.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	NodeStartedEvent        EventType = "node.started"
	NodeCompletedEvent      EventType = "node.completed"
	NodeErroredEvent        EventType = "node.errored"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

// Event is implemented by every lifecycle event.
type Event interface {
	GetType() EventType
}

// IsTerminal reports whether no further events follow for the execution.
func IsTerminal(t EventType) bool {
	return t == ExecutionCompletedEvent || t == ExecutionFailedEvent
}

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
}

// Progress is the cumulative completion ratio at the moment of the event.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type NodeStarted struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeName string          `json:"node_name"`
	NodeType models.NodeType `json:"node_type"`
	Progress Progress        `json:"progress"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID     string              `json:"node_id"`
	NodeName   string              `json:"node_name"`
	Status     models.ResultStatus `json:"status"`
	Data       map[string]any      `json:"data,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	Progress   Progress            `json:"progress"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeErrored struct {
	BaseEvent

	NodeID     string   `json:"node_id"`
	NodeName   string   `json:"node_name"`
	Error      string   `json:"error"`
	DurationMs int64    `json:"duration_ms"`
	Progress   Progress `json:"progress"`
}

func (e NodeErrored) GetType() EventType {
	return NodeErroredEvent
}

type ExecutionStarted struct {
	BaseEvent

	TotalNodes int `json:"total_nodes"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	TotalTokens int            `json:"total_tokens"`
	Cost        float64        `json:"cost"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
