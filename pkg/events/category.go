package events

import "strings"

// Category partitions webhook discriminants.
// A discriminant belongs to at most one of Execution, Workflow, CRDT, Control.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryExecution
	CategoryWorkflow
	CategoryCRDT
	CategoryControl
)

func (c Category) String() string {
	switch c {
	case CategoryExecution:
		return "execution"
	case CategoryWorkflow:
		return "workflow"
	case CategoryCRDT:
		return "crdt"
	case CategoryControl:
		return "control"
	default:
		return "unknown"
	}
}

var (
	executionTypes = map[Type]struct{}{
		NodeExecuting: {}, NodeCompleted: {}, NodeFailed: {}, NodeWarning: {},
		ExecutionStarted: {}, ExecutionCompleted: {}, ExecutionFailed: {},
	}
	crdtTypes = map[Type]struct{}{
		NodeAdded: {}, NodeUpdated: {}, NodeDeleted: {},
		ConnectionAdded: {}, ConnectionDeleted: {},
		GroupCreated: {}, GroupUpdated: {}, GroupDeleted: {},
		TemplateRegistered: {}, TraceEvent: {},
	}
	controlTypes = map[Type]struct{}{
		Subscribe: {}, Unsubscribe: {}, Ping: {}, Pong: {},
	}
	nodeTypes = map[Type]struct{}{
		NodeExecuting: {}, NodeCompleted: {}, NodeFailed: {}, NodeWarning: {},
		NodeAdded: {}, NodeUpdated: {}, NodeDeleted: {},
	}
	connectionTypes = map[Type]struct{}{
		ConnectionAdded: {}, ConnectionDeleted: {},
	}
)

// Classify returns the primary category of a discriminant
func Classify(eventType string) Category {
	switch {
	case IsExecutionEvent(eventType):
		return CategoryExecution
	case IsWorkflowEvent(eventType):
		return CategoryWorkflow
	case IsCRDTEvent(eventType):
		return CategoryCRDT
	case IsControlEvent(eventType):
		return CategoryControl
	default:
		return CategoryUnknown
	}
}

// IsExecutionEvent reports membership in the execution set
func IsExecutionEvent(eventType string) bool {
	_, ok := executionTypes[Type(eventType)]
	return ok
}

// IsWorkflowEvent matches any "workflow." discriminant
func IsWorkflowEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "workflow.")
}

// IsCRDTEvent reports membership in the graph mutation set
func IsCRDTEvent(eventType string) bool {
	_, ok := crdtTypes[Type(eventType)]
	return ok
}

// IsControlEvent reports membership in the realtime control set
func IsControlEvent(eventType string) bool {
	_, ok := controlTypes[Type(eventType)]
	return ok
}

// IsNodeEvent reports whether the discriminant concerns a single node,
// either its execution or its graph mutation.
func IsNodeEvent(eventType string) bool {
	_, ok := nodeTypes[Type(eventType)]
	return ok
}

// IsGroupEvent matches any "group." discriminant
func IsGroupEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "group.")
}

// IsTemplateEvent matches any "template." discriminant
func IsTemplateEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "template.")
}

// IsConnectionEvent reports membership in the connection CRDT set
func IsConnectionEvent(eventType string) bool {
	_, ok := connectionTypes[Type(eventType)]
	return ok
}

// IsTraceEvent reports whether the discriminant is a trace record
func IsTraceEvent(eventType string) bool {
	return Type(eventType) == TraceEvent
}
