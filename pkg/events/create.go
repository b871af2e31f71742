package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewEventID returns an id of the form evt_<unix millis>_<11 hex chars>
func NewEventID() string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("evt_%d_%s", time.Now().UnixMilli(), random[:11])
}

func newBase(t Type, workflowID string, graphID *string) Base {
	return Base{
		ID:         NewEventID(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Type:       string(t),
		WorkflowID: workflowID,
		GraphID:    graphID,
	}
}

// NewNodeAdded builds a node.added event
func NewNodeAdded(workflowID, nodeID string, data map[string]interface{}, graphID *string) *NodeAddedEvent {
	return &NodeAddedEvent{
		Base:   newBase(NodeAdded, workflowID, graphID),
		NodeID: nodeID,
		Data:   data,
	}
}

// NewNodeUpdated builds a node.updated event
func NewNodeUpdated(workflowID, nodeID string, data map[string]interface{}, graphID *string) *NodeUpdatedEvent {
	return &NodeUpdatedEvent{
		Base:   newBase(NodeUpdated, workflowID, graphID),
		NodeID: nodeID,
		Data:   data,
	}
}

// NewNodeDeleted builds a node.deleted event
func NewNodeDeleted(workflowID, nodeID string, graphID *string) *NodeDeletedEvent {
	return &NodeDeletedEvent{
		Base:   newBase(NodeDeleted, workflowID, graphID),
		NodeID: nodeID,
	}
}

// NewConnectionAdded builds a connection.added event
func NewConnectionAdded(workflowID string, data map[string]interface{}, graphID *string) *ConnectionAddedEvent {
	return &ConnectionAddedEvent{
		Base: newBase(ConnectionAdded, workflowID, graphID),
		Data: data,
	}
}

// NewConnectionDeleted builds a connection.deleted event
func NewConnectionDeleted(workflowID string, data map[string]interface{}, graphID *string) *ConnectionDeletedEvent {
	return &ConnectionDeletedEvent{
		Base: newBase(ConnectionDeleted, workflowID, graphID),
		Data: data,
	}
}

// NewGroupCreated builds a group.created event
func NewGroupCreated(workflowID string, data map[string]interface{}, graphID *string) *GroupCreatedEvent {
	return &GroupCreatedEvent{
		Base: newBase(GroupCreated, workflowID, graphID),
		Data: data,
	}
}

// NewGroupUpdated builds a group.updated event
func NewGroupUpdated(workflowID string, data map[string]interface{}, graphID *string) *GroupUpdatedEvent {
	return &GroupUpdatedEvent{
		Base: newBase(GroupUpdated, workflowID, graphID),
		Data: data,
	}
}

// NewGroupDeleted builds a group.deleted event
func NewGroupDeleted(workflowID string, data map[string]interface{}, graphID *string) *GroupDeletedEvent {
	return &GroupDeletedEvent{
		Base: newBase(GroupDeleted, workflowID, graphID),
		Data: data,
	}
}
