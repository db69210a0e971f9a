package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store backed by plain slices/maps, grounded on
// the teacher's in-memory checkpoint store pattern. Suitable for tests and
// for single-process deployments that don't need durability across
// restarts (the engine's execution state is never persisted regardless,
// per the Non-goals — only this observer-facing history is).
type MemStore struct {
	mu sync.Mutex

	threads  map[string]string // elementID -> threadID
	events   []StoredEvent
	nextID   int64
	messages map[string][]StoredMessage // threadID -> rows, latest last
	thinking map[string][]ThinkingEvent
	tools    map[string][]ToolExecution
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		threads:  make(map[string]string),
		messages: make(map[string][]StoredMessage),
		thinking: make(map[string][]ThinkingEvent),
		tools:    make(map[string][]ToolExecution),
	}
}

func (m *MemStore) ThreadID(elementID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.threads[elementID]; ok {
		return id, nil
	}
	id := uuid.NewString()
	m.threads[elementID] = id
	return id, nil
}

func (m *MemStore) AppendEvent(elementID, eventType string, blob []byte, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.events = append(m.events, StoredEvent{
		ID: m.nextID, ElementID: elementID, EventType: eventType, Blob: blob, Timestamp: ts,
	})
	return nil
}

func (m *MemStore) UpsertMessage(msg StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.messages[msg.ThreadID]
	for i, row := range rows {
		if row.MessageID == msg.MessageID {
			rows[i] = msg
			m.messages[msg.ThreadID] = rows
			return nil
		}
	}
	m.messages[msg.ThreadID] = append(rows, msg)
	return nil
}

func (m *MemStore) AppendThinking(threadID, message string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thinking[threadID] = append(m.thinking[threadID], ThinkingEvent{ThreadID: threadID, Message: message, Timestamp: ts})
	return nil
}

func (m *MemStore) StartToolExecution(threadID, toolName string, args map[string]any, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[threadID] = append(m.tools[threadID], ToolExecution{
		ThreadID: threadID, ToolName: toolName, Args: args, Status: ToolRunning, StartTime: ts,
	})
	return nil
}

func (m *MemStore) EndToolExecution(threadID, toolName string, result map[string]any, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tools[threadID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ToolName == toolName && rows[i].Status == ToolRunning {
			rows[i].Status = ToolComplete
			rows[i].Result = result
			rows[i].EndTime = ts
			return nil
		}
	}
	return nil
}

func (m *MemStore) ThinkingEvents(threadID string) ([]ThinkingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ThinkingEvent, len(m.thinking[threadID]))
	copy(out, m.thinking[threadID])
	return out, nil
}

func (m *MemStore) ToolExecutions(threadID string) ([]ToolExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolExecution, len(m.tools[threadID]))
	copy(out, m.tools[threadID])
	return out, nil
}

func (m *MemStore) Messages(threadID string) ([]StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoredMessage, len(m.messages[threadID]))
	copy(out, m.messages[threadID])
	return out, nil
}

func (m *MemStore) Close() error { return nil }
