package events

import "maps"

// Type is the discriminant identifying an event variant.
type Type string

const (
	// Execution events
	NodeExecuting      Type = "node.executing"
	NodeCompleted      Type = "node.completed"
	NodeFailed         Type = "node.failed"
	NodeWarning        Type = "node.warning"
	ExecutionStarted   Type = "execution.started"
	ExecutionCompleted Type = "execution.completed"
	ExecutionFailed    Type = "execution.failed"

	// Workflow lifecycle events
	WorkflowCreated Type = "workflow.created"
	WorkflowUpdated Type = "workflow.updated"
	WorkflowDeleted Type = "workflow.deleted"

	// CRDT graph mutation events
	NodeAdded          Type = "node.added"
	NodeUpdated        Type = "node.updated"
	NodeDeleted        Type = "node.deleted"
	ConnectionAdded    Type = "connection.added"
	ConnectionDeleted  Type = "connection.deleted"
	GroupCreated       Type = "group.created"
	GroupUpdated       Type = "group.updated"
	GroupDeleted       Type = "group.deleted"
	TemplateRegistered Type = "template.registered"
	TraceEvent         Type = "trace.event"

	// Realtime control events, never delivered through webhooks
	Subscribe   Type = "subscribe"
	Unsubscribe Type = "unsubscribe"
	Ping        Type = "ping"
	Pong        Type = "pong"

	// ConnectionState is emitted on the realtime channel for visualisation only.
	ConnectionState Type = "connection.state"
)

// String returns the wire form of the discriminant
func (t Type) String() string {
	return string(t)
}

// Event is implemented by every decodable webhook event.
// The set of implementations is closed: each one is produced by Decode or a New* constructor.
//
// One decoded value is shared by every callback and subscriber of a delivery,
// so receivers must treat it as read-only.
type Event interface {
	// EventType returns the discriminant. It is fixed per Go type.
	EventType() Type
	// Common returns a copy of the fields shared by every event.
	Common() Base
	sealed()
}

// Base holds the fields present on every webhook event
type Base struct {
	ID         string                 `json:"id"`
	Timestamp  string                 `json:"timestamp"`
	Type       string                 `json:"type"`
	WorkflowID string                 `json:"workflowId"`
	GraphID    *string                `json:"graphId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Common returns a copy of the shared event fields. GraphID and the top level
// of Metadata are copied too.
func (b *Base) Common() Base {
	c := *b
	if b.GraphID != nil {
		graphID := *b.GraphID
		c.GraphID = &graphID
	}
	c.Metadata = maps.Clone(b.Metadata)
	return c
}

func (b *Base) sealed() {}

// NodeError describes why a node failed
type NodeError struct {
	Message string  `json:"message"`
	Code    *string `json:"code,omitempty"`
	Stack   *string `json:"stack,omitempty"`
}

// NodeWarningInfo describes a non-fatal node problem
type NodeWarningInfo struct {
	Message string  `json:"message"`
	Code    *string `json:"code,omitempty"`
}

// ExecutionTrigger describes what started an execution
type ExecutionTrigger struct {
	Type   string  `json:"type"`
	Source *string `json:"source,omitempty"`
}

// ExecutionSummary holds per-execution node outcome counts
type ExecutionSummary struct {
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
	WarningCount int `json:"warningCount"`
}

// ExecutionError describes why an execution failed
type ExecutionError struct {
	Message string  `json:"message"`
	Code    *string `json:"code,omitempty"`
	NodeID  *string `json:"nodeId,omitempty"`
}

// NodeExecutingEvent is sent when a node starts executing
type NodeExecutingEvent struct {
	Base
	NodeID           string   `json:"nodeId"`
	InputConnections []string `json:"inputConnections"`
}

// NodeCompletedEvent is sent when a node finishes successfully
type NodeCompletedEvent struct {
	Base
	NodeID            string   `json:"nodeId"`
	OutputConnections []string `json:"outputConnections"`
	Duration          *int64   `json:"duration,omitempty"`
	OutputSize        *int64   `json:"outputSize,omitempty"`
}

// NodeFailedEvent is sent when a node fails
type NodeFailedEvent struct {
	Base
	NodeID            string     `json:"nodeId"`
	OutputConnections []string   `json:"outputConnections"`
	Error             *NodeError `json:"error,omitempty"`
}

// NodeWarningEvent is sent when a node completes with warnings
type NodeWarningEvent struct {
	Base
	NodeID            string           `json:"nodeId"`
	OutputConnections []string         `json:"outputConnections"`
	Warning           *NodeWarningInfo `json:"warning,omitempty"`
}

// ExecutionStartedEvent is sent when a workflow execution begins
type ExecutionStartedEvent struct {
	Base
	SessionID    string            `json:"sessionId"`
	WorkflowName string            `json:"workflowName"`
	Trigger      *ExecutionTrigger `json:"trigger,omitempty"`
}

// ExecutionCompletedEvent is sent when a workflow execution finishes.
// Duration is in milliseconds.
type ExecutionCompletedEvent struct {
	Base
	SessionID     string            `json:"sessionId"`
	Duration      int64             `json:"duration"`
	NodesExecuted int               `json:"nodesExecuted"`
	Summary       *ExecutionSummary `json:"summary,omitempty"`
}

// ExecutionFailedEvent is sent when a workflow execution fails
type ExecutionFailedEvent struct {
	Base
	SessionID string          `json:"sessionId"`
	Duration  *int64          `json:"duration,omitempty"`
	Error     *ExecutionError `json:"error,omitempty"`
}

// WorkflowCreatedEvent is sent when a workflow is created
type WorkflowCreatedEvent struct {
	Base
	WorkflowName string  `json:"workflowName"`
	UserID       *string `json:"userId,omitempty"`
}

// WorkflowUpdatedEvent is sent when a workflow is updated
type WorkflowUpdatedEvent struct {
	Base
	Data map[string]interface{} `json:"data,omitempty"`
}

// WorkflowDeletedEvent is sent when a workflow is deleted
type WorkflowDeletedEvent struct {
	Base
	WorkflowName *string `json:"workflowName,omitempty"`
}

// NodeAddedEvent is sent when a node is added to the graph
type NodeAddedEvent struct {
	Base
	NodeID string                 `json:"nodeId"`
	Data   map[string]interface{} `json:"data"`
}

// NodeUpdatedEvent is sent when a node changes
type NodeUpdatedEvent struct {
	Base
	NodeID string                 `json:"nodeId"`
	Data   map[string]interface{} `json:"data"`
}

// NodeDeletedEvent is sent when a node is removed from the graph
type NodeDeletedEvent struct {
	Base
	NodeID string `json:"nodeId"`
}

// ConnectionAddedEvent is sent when two ports are connected
type ConnectionAddedEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// ConnectionDeletedEvent is sent when a connection is removed
type ConnectionDeletedEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// GroupCreatedEvent is sent when a node group is created
type GroupCreatedEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// GroupUpdatedEvent is sent when a node group changes
type GroupUpdatedEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// GroupDeletedEvent is sent when a node group is removed
type GroupDeletedEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// TemplateRegisteredEvent is sent when a node template is registered
type TemplateRegisteredEvent struct {
	Base
	Data map[string]interface{} `json:"data"`
}

// TraceEventData carries a single trace record for a node in a session
type TraceEventData struct {
	Base
	SessionID string                 `json:"sessionId"`
	NodeID    string                 `json:"nodeId"`
	Data      map[string]interface{} `json:"data"`
}

func (*NodeExecutingEvent) EventType() Type      { return NodeExecuting }
func (*NodeCompletedEvent) EventType() Type      { return NodeCompleted }
func (*NodeFailedEvent) EventType() Type         { return NodeFailed }
func (*NodeWarningEvent) EventType() Type        { return NodeWarning }
func (*ExecutionStartedEvent) EventType() Type   { return ExecutionStarted }
func (*ExecutionCompletedEvent) EventType() Type { return ExecutionCompleted }
func (*ExecutionFailedEvent) EventType() Type    { return ExecutionFailed }
func (*WorkflowCreatedEvent) EventType() Type    { return WorkflowCreated }
func (*WorkflowUpdatedEvent) EventType() Type    { return WorkflowUpdated }
func (*WorkflowDeletedEvent) EventType() Type    { return WorkflowDeleted }
func (*NodeAddedEvent) EventType() Type          { return NodeAdded }
func (*NodeUpdatedEvent) EventType() Type        { return NodeUpdated }
func (*NodeDeletedEvent) EventType() Type        { return NodeDeleted }
func (*ConnectionAddedEvent) EventType() Type    { return ConnectionAdded }
func (*ConnectionDeletedEvent) EventType() Type  { return ConnectionDeleted }
func (*GroupCreatedEvent) EventType() Type       { return GroupCreated }
func (*GroupUpdatedEvent) EventType() Type       { return GroupUpdated }
func (*GroupDeletedEvent) EventType() Type       { return GroupDeleted }
func (*TemplateRegisteredEvent) EventType() Type { return TemplateRegistered }
func (*TraceEventData) EventType() Type          { return TraceEvent }
