// Package models defines the core domain models for node-based workflow execution.
package models

// NodeType identifies the processor responsible for a node. Config is a
// loosely-typed payload whose shape is owned by the node's processor package
// and validated against its JSON schema at graph load time.
type NodeType string

const (
	NodeTypeInput        NodeType = "INPUT"
	NodeTypeTrigger      NodeType = "TRIGGER"
	NodeTypeProcess      NodeType = "PROCESS"
	NodeTypeCode         NodeType = "CODE"
	NodeTypeCondition    NodeType = "CONDITION"
	NodeTypeSwitch       NodeType = "SWITCH"
	NodeTypeLoop         NodeType = "LOOP"
	NodeTypeHTTPRequest  NodeType = "HTTP_REQUEST"
	NodeTypeMerge        NodeType = "MERGE"
	NodeTypeGroup        NodeType = "GROUP"
	NodeTypeOutput       NodeType = "OUTPUT"
	NodeTypeNotification NodeType = "NOTIFICATION"
	NodeTypeImage        NodeType = "IMAGE"
	NodeTypeVideo        NodeType = "VIDEO"
	NodeTypeAudio        NodeType = "AUDIO"
)

// Node represents a node instance in a workflow graph.
type Node struct {
	ID       string         `json:"id"         validate:"required"`
	Type     NodeType       `json:"type"       validate:"required"`
	Name     string         `json:"name"       validate:"required,min=1"`
	Config   map[string]any `json:"config"`
	Enabled  bool           `json:"enabled"`
	Children []string       `json:"children,omitempty"` // GROUP and LOOP body, in execution order
}

// IsContainer reports whether the node owns a child subgraph instead of
// being dispatched to a processor directly.
func (n *Node) IsContainer() bool {
	return n.Type == NodeTypeGroup || n.Type == NodeTypeLoop
}

// Edge is a directed dependency between two nodes. Branch carries the
// label selected by CONDITION/SWITCH nodes ("true", "false", a case value);
// an empty branch is always followed.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Branch string `json:"branch,omitempty"`
}

// ResultStatus defines the terminal per-node states.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusError   ResultStatus = "error"
	ResultStatusSkipped ResultStatus = "skipped"
)

// NodeResult is returned by every processor. Failures are captured here,
// never propagated as Go errors past the processor boundary.
type NodeResult struct {
	NodeID     string         `json:"node_id"`
	Status     ResultStatus   `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Files      []OutputFile   `json:"files,omitempty"`
}

// SuccessResult builds a successful NodeResult for the given node.
func SuccessResult(nodeID string, data map[string]any) NodeResult {
	return NodeResult{NodeID: nodeID, Status: ResultStatusSuccess, Data: data}
}

// ErrorResult builds a failed NodeResult. Data may still carry diagnostic
// payload (partial logs, response bodies); the scheduler never propagates
// it to downstream variable resolution.
func ErrorResult(nodeID string, message string) NodeResult {
	return NodeResult{NodeID: nodeID, Status: ResultStatusError, Error: message}
}

// SkippedResult marks a node that was pruned or lost an upstream dependency.
func SkippedResult(nodeID string) NodeResult {
	return NodeResult{NodeID: nodeID, Status: ResultStatusSkipped}
}
