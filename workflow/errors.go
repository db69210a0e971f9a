package workflow

import "fmt"

// The error taxonomy (§7). Each is a distinct type so callers can
// discriminate with errors.As, mirroring the teacher's NodeError pattern
// of structured, node-scoped errors rather than bare sentinel strings.

// GraphParseError indicates malformed YAML or a schema violation; the
// instance never starts.
type GraphParseError struct {
	Reason string
}

func (e *GraphParseError) Error() string { return "graph parse error: " + e.Reason }

// GatewayNoMatch indicates an exclusive or inclusive gateway had no firing
// outgoing flow.
type GatewayNoMatch struct {
	NodeID string
}

func (e *GatewayNoMatch) Error() string {
	return fmt.Sprintf("gateway %q: no outgoing flow matched and no default exists", e.NodeID)
}

// MessageTimeout indicates a receive task did not receive a correlated
// message within its wait window. Retryable is always false per §7.
type MessageTimeout struct {
	MessageRef     string
	CorrelationKey string
}

func (e *MessageTimeout) Error() string {
	return fmt.Sprintf("message timeout waiting for ref=%q key=%q", e.MessageRef, e.CorrelationKey)
}

// UserTaskRejected indicates a user task was completed with decision
// "rejected" or "denied". It is not a hard failure: the engine continues
// along the task's outgoing flows, where gateways can branch on the
// {nodeId}_decision scope variable the user-task executor stores.
type UserTaskRejected struct {
	NodeID  string
	Comment string
}

func (e *UserTaskRejected) Error() string {
	return fmt.Sprintf("user task %q rejected: %s", e.NodeID, e.Comment)
}

// ScriptFailure indicates a sandboxed script raised.
type ScriptFailure struct {
	NodeID string
	Cause  error
}

func (e *ScriptFailure) Error() string {
	return fmt.Sprintf("script task %q failed: %v", e.NodeID, e.Cause)
}

func (e *ScriptFailure) Unwrap() error { return e.Cause }

// ToolFailure indicates an external tool call failed during an agentic
// task; the executor records it in the result and may retry per its
// confidence policy rather than failing the node outright.
type ToolFailure struct {
	ToolName string
	Cause    error
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Cause)
}

func (e *ToolFailure) Unwrap() error { return e.Cause }

// Cancelled indicates cooperative cancellation was observed; this is
// never reported to observers as a task.error.
type Cancelled struct {
	NodeID string
	Reason string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("node %q cancelled: %s", e.NodeID, e.Reason)
}

// EventSubProcessHandled is a sentinel raised internally when an error is
// caught by an error event sub-process; the top-level traversal converts
// it into workflow success and emits no task.error.
type EventSubProcessHandled struct {
	SubProcessID string
	Cause        error
}

func (e *EventSubProcessHandled) Error() string {
	return fmt.Sprintf("error handled by event sub-process %q: %v", e.SubProcessID, e.Cause)
}

func (e *EventSubProcessHandled) Unwrap() error { return e.Cause }
