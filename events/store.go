package events

import "time"

// MessageStatus is the lifecycle state of a persisted message row.
type MessageStatus string

const (
	MessageStreaming MessageStatus = "streaming"
	MessageComplete  MessageStatus = "complete"
	MessageCancelled MessageStatus = "cancelled"
)

// ToolStatus is the lifecycle state of a persisted tool execution row.
type ToolStatus string

const (
	ToolRunning  ToolStatus = "running"
	ToolComplete ToolStatus = "complete"
)

// StoredEvent is one row of the raw append-only audit log.
type StoredEvent struct {
	ID        int64
	ElementID string
	EventType string
	Blob      []byte // the JSON-marshaled Event
	Timestamp time.Time
}

// StoredMessage is one row of the messages table.
type StoredMessage struct {
	MessageID          string
	ThreadID           string
	Role               string
	Content            string
	Status             MessageStatus
	CancellationReason string
	StartedAt          time.Time
	UpdatedAt          time.Time
}

// ThinkingEvent is one row of the thinkingEvents table.
type ThinkingEvent struct {
	ThreadID  string
	Message   string
	Timestamp time.Time
}

// ToolExecution is one row of the toolExecutions table.
type ToolExecution struct {
	ThreadID  string
	ToolName  string
	Args      map[string]any
	Result    map[string]any
	Status    ToolStatus
	StartTime time.Time
	EndTime   time.Time
}

// Store is the append-oriented durable EventStore (§3): persists runtime
// events keyed by elementId (node scope) so a late-joining observer can
// reconstruct a node's history via Replay.
type Store interface {
	// ThreadID returns the threadId for elementId, creating one on first
	// use.
	ThreadID(elementID string) (string, error)

	// AppendEvent appends a raw audit-log row.
	AppendEvent(elementID, eventType string, blob []byte, ts time.Time) error

	// UpsertMessage starts or updates a message row. A streaming message
	// keeps the same messageID across chunks; status transitions to
	// complete or cancelled terminate it.
	UpsertMessage(msg StoredMessage) error

	// AppendThinking appends a thinkingEvents row for a thread.
	AppendThinking(threadID, message string, ts time.Time) error

	// StartToolExecution opens a running toolExecutions row.
	StartToolExecution(threadID, toolName string, args map[string]any, ts time.Time) error

	// EndToolExecution closes the latest running toolExecutions row
	// matching (threadID, toolName).
	EndToolExecution(threadID, toolName string, result map[string]any, ts time.Time) error

	// ThinkingEvents returns every thinkingEvents row for a thread, in
	// insertion order.
	ThinkingEvents(threadID string) ([]ThinkingEvent, error)

	// ToolExecutions returns every toolExecutions row for a thread, in
	// insertion order.
	ToolExecutions(threadID string) ([]ToolExecution, error)

	// Messages returns every messages row for a thread. The SQL stores
	// order rows by start time; the in-memory store keeps insertion order.
	Messages(threadID string) ([]StoredMessage, error)

	// Close releases any underlying resources (database handle, etc).
	Close() error
}
