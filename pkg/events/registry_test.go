package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AllRegisteredTypes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, e Event)
	}{
		{
			name:    "node.executing",
			payload: `{"id":"e1","timestamp":"2024-01-01T00:00:00Z","type":"node.executing","workflowId":"wf","nodeId":"n1","inputConnections":["c1"]}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*NodeExecutingEvent)
				assert.Equal(t, "n1", ev.NodeID)
				assert.Equal(t, []string{"c1"}, ev.InputConnections)
			},
		},
		{
			name:    "node.completed",
			payload: `{"id":"e1","timestamp":"t","type":"node.completed","workflowId":"wf","nodeId":"n1","outputConnections":[],"duration":42,"outputSize":7}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*NodeCompletedEvent)
				require.NotNil(t, ev.Duration)
				assert.Equal(t, int64(42), *ev.Duration)
				require.NotNil(t, ev.OutputSize)
				assert.Equal(t, int64(7), *ev.OutputSize)
			},
		},
		{
			name:    "node.failed",
			payload: `{"id":"e1","timestamp":"t","type":"node.failed","workflowId":"wf","nodeId":"n1","outputConnections":[],"error":{"message":"boom"}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*NodeFailedEvent)
				require.NotNil(t, ev.Error)
				assert.Equal(t, "boom", ev.Error.Message)
			},
		},
		{
			name:    "node.warning",
			payload: `{"id":"e1","timestamp":"t","type":"node.warning","workflowId":"wf","nodeId":"n1","outputConnections":[],"warning":{"message":"slow"}}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, "slow", e.(*NodeWarningEvent).Warning.Message)
			},
		},
		{
			name:    "execution.started",
			payload: `{"id":"e1","timestamp":"t","type":"execution.started","workflowId":"wf","sessionId":"s1","workflowName":"demo","trigger":{"type":"manual"}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*ExecutionStartedEvent)
				assert.Equal(t, "s1", ev.SessionID)
				assert.Equal(t, "demo", ev.WorkflowName)
				assert.Equal(t, "manual", ev.Trigger.Type)
			},
		},
		{
			name:    "execution.completed",
			payload: `{"id":"e1","timestamp":"t","type":"execution.completed","workflowId":"wf","sessionId":"s1","duration":1500,"nodesExecuted":3,"summary":{"successCount":3,"errorCount":0,"warningCount":1}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*ExecutionCompletedEvent)
				assert.Equal(t, int64(1500), ev.Duration)
				assert.Equal(t, 3, ev.NodesExecuted)
				assert.Equal(t, 1, ev.Summary.WarningCount)
			},
		},
		{
			name:    "execution.failed",
			payload: `{"id":"e1","timestamp":"t","type":"execution.failed","workflowId":"wf","sessionId":"s1","error":{"message":"bad","nodeId":"n2"}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*ExecutionFailedEvent)
				assert.Equal(t, "n2", *ev.Error.NodeID)
			},
		},
		{
			name:    "workflow.created",
			payload: `{"id":"e1","timestamp":"t","type":"workflow.created","workflowId":"wf","workflowName":"demo","userId":"u1"}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, "u1", *e.(*WorkflowCreatedEvent).UserID)
			},
		},
		{
			name:    "workflow.updated without data",
			payload: `{"id":"e1","timestamp":"t","type":"workflow.updated","workflowId":"wf"}`,
			check: func(t *testing.T, e Event) {
				assert.Nil(t, e.(*WorkflowUpdatedEvent).Data)
			},
		},
		{
			name:    "workflow.deleted",
			payload: `{"id":"e1","timestamp":"t","type":"workflow.deleted","workflowId":"wf"}`,
			check: func(t *testing.T, e Event) {
				assert.Nil(t, e.(*WorkflowDeletedEvent).WorkflowName)
			},
		},
		{
			name:    "node.added",
			payload: `{"id":"e1","timestamp":"t","type":"node.added","workflowId":"wf","graphId":"main","nodeId":"n1","data":{"x":1}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*NodeAddedEvent)
				assert.Equal(t, "main", *ev.GraphID)
				assert.Equal(t, float64(1), ev.Data["x"])
			},
		},
		{
			name:    "node.updated",
			payload: `{"id":"e1","timestamp":"t","type":"node.updated","workflowId":"wf","nodeId":"n1","data":{}}`,
			check:   func(t *testing.T, e Event) { assert.Equal(t, "n1", e.(*NodeUpdatedEvent).NodeID) },
		},
		{
			name:    "node.deleted",
			payload: `{"id":"e1","timestamp":"t","type":"node.deleted","workflowId":"wf","nodeId":"n1"}`,
			check:   func(t *testing.T, e Event) { assert.Equal(t, "n1", e.(*NodeDeletedEvent).NodeID) },
		},
		{
			name:    "connection.added",
			payload: `{"id":"e1","timestamp":"t","type":"connection.added","workflowId":"wf","data":{"id":"c1"}}`,
			check:   func(t *testing.T, e Event) { assert.Equal(t, "c1", e.(*ConnectionAddedEvent).Data["id"]) },
		},
		{
			name:    "connection.deleted",
			payload: `{"id":"e1","timestamp":"t","type":"connection.deleted","workflowId":"wf","data":{}}`,
			check:   func(t *testing.T, e Event) { assert.IsType(t, &ConnectionDeletedEvent{}, e) },
		},
		{
			name:    "group.created",
			payload: `{"id":"e1","timestamp":"t","type":"group.created","workflowId":"wf","data":{}}`,
			check:   func(t *testing.T, e Event) { assert.IsType(t, &GroupCreatedEvent{}, e) },
		},
		{
			name:    "group.updated",
			payload: `{"id":"e1","timestamp":"t","type":"group.updated","workflowId":"wf","data":{}}`,
			check:   func(t *testing.T, e Event) { assert.IsType(t, &GroupUpdatedEvent{}, e) },
		},
		{
			name:    "group.deleted",
			payload: `{"id":"e1","timestamp":"t","type":"group.deleted","workflowId":"wf","data":{}}`,
			check:   func(t *testing.T, e Event) { assert.IsType(t, &GroupDeletedEvent{}, e) },
		},
		{
			name:    "template.registered",
			payload: `{"id":"e1","timestamp":"t","type":"template.registered","workflowId":"wf","data":{"templateId":"tpl"}}`,
			check:   func(t *testing.T, e Event) { assert.IsType(t, &TemplateRegisteredEvent{}, e) },
		},
		{
			name:    "trace.event",
			payload: `{"id":"e1","timestamp":"t","type":"trace.event","workflowId":"wf","sessionId":"s1","nodeId":"n1","data":{"k":"v"}}`,
			check: func(t *testing.T, e Event) {
				ev := e.(*TraceEventData)
				assert.Equal(t, "s1", ev.SessionID)
				assert.Equal(t, "v", ev.Data["k"])
			},
		},
	}

	require.Len(t, tests, len(registry), "every registered type needs a decode case")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, e.Common().Type, string(e.EventType()))
			assert.Equal(t, "wf", e.Common().WorkflowID)
			assert.Equal(t, "e1", e.Common().ID)
			tt.check(t, e)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"unknown type", `{"id":"e1","timestamp":"t","type":"node.exploded","workflowId":"wf"}`, ErrUnknownEventType},
		{"control event is not a webhook event", `{"type":"ping","timestamp":1}`, ErrUnknownEventType},
		{"connection.state is not a webhook event", `{"id":"e1","timestamp":"t","type":"connection.state","workflowId":"wf"}`, ErrUnknownEventType},
		{"missing type", `{"id":"e1","timestamp":"t","workflowId":"wf"}`, ErrMalformedEvent},
		{"type not a string", `{"id":"e1","timestamp":"t","type":5,"workflowId":"wf"}`, ErrMalformedEvent},
		{"not an object", `[1,2,3]`, ErrMalformedEvent},
		{"null payload", `null`, ErrMalformedEvent},
		{"invalid json", `{"type":`, ErrMalformedEvent},
		{"missing base field", `{"timestamp":"t","type":"node.deleted","workflowId":"wf","nodeId":"n1"}`, ErrMalformedEvent},
		{"missing workflowId", `{"id":"e1","timestamp":"t","type":"node.deleted","nodeId":"n1"}`, ErrMalformedEvent},
		{"missing variant field", `{"id":"e1","timestamp":"t","type":"node.added","workflowId":"wf","data":{}}`, ErrMalformedEvent},
		{"null variant field", `{"id":"e1","timestamp":"t","type":"node.added","workflowId":"wf","nodeId":"n1","data":null}`, ErrMalformedEvent},
		{"wrong shape", `{"id":"e1","timestamp":"t","type":"execution.completed","workflowId":"wf","sessionId":"s1","duration":"long","nodesExecuted":1}`, ErrMalformedEvent},
		{"snake_case wire names are not aliases", `{"id":"e1","timestamp":"t","type":"node.deleted","workflow_id":"wf","node_id":"n1"}`, ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode(json.RawMessage(tt.payload))
			assert.Nil(t, e)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDecodeMap(t *testing.T) {
	e, err := DecodeMap(map[string]interface{}{
		"id":         "e1",
		"timestamp":  "t",
		"type":       "node.deleted",
		"workflowId": "wf",
		"nodeId":     "n9",
	})
	require.NoError(t, err)
	assert.Equal(t, NodeDeleted, e.EventType())

	_, err = DecodeMap(nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestRegisteredTypes(t *testing.T) {
	types := RegisteredTypes()
	assert.Len(t, types, 20)
	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1], types[i])
	}
	assert.True(t, Registered(NodeAdded))
	assert.False(t, Registered(Ping))
	assert.False(t, Registered(ConnectionState))
}

func TestConstructors_DecodeBack(t *testing.T) {
	graph := "main"
	created := []Event{
		NewNodeAdded("wf", "n1", map[string]interface{}{"a": 1}, &graph),
		NewNodeUpdated("wf", "n1", map[string]interface{}{}, nil),
		NewNodeDeleted("wf", "n1", nil),
		NewConnectionAdded("wf", map[string]interface{}{}, nil),
		NewConnectionDeleted("wf", map[string]interface{}{}, nil),
		NewGroupCreated("wf", map[string]interface{}{}, nil),
		NewGroupUpdated("wf", map[string]interface{}{}, nil),
		NewGroupDeleted("wf", map[string]interface{}{}, nil),
	}

	for _, original := range created {
		t.Run(string(original.EventType()), func(t *testing.T) {
			assert.Regexp(t, `^evt_\d+_[0-9a-f]{11}$`, original.Common().ID)

			raw, err := json.Marshal(original)
			require.NoError(t, err)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, original.EventType(), decoded.EventType())
			assert.Equal(t, original.Common().ID, decoded.Common().ID)
		})
	}
}

func TestNewEventID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEventID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCommon_ReturnsCopy(t *testing.T) {
	graph := "main"
	e := NewNodeAdded("wf_1", "n1", nil, &graph)
	e.Metadata = map[string]interface{}{"source": "editor"}

	common := e.Common()
	common.Type = "node.deleted"
	common.WorkflowID = "wf_other"
	*common.GraphID = "other"
	common.Metadata["source"] = "api"

	again := e.Common()
	assert.Equal(t, "node.added", again.Type)
	assert.Equal(t, "wf_1", again.WorkflowID)
	assert.Equal(t, "main", *again.GraphID)
	assert.Equal(t, "editor", again.Metadata["source"])
	assert.Equal(t, NodeAdded, e.EventType())
}
