package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreThreadIDIsStable(t *testing.T) {
	m := NewMemStore()
	id1, _ := m.ThreadID("node-a")
	id2, _ := m.ThreadID("node-a")
	assert.Equal(t, id1, id2)
}

func TestMemStoreToolExecutionLifecycle(t *testing.T) {
	m := NewMemStore()
	threadID, err := m.ThreadID("agentic-1")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, m.StartToolExecution(threadID, "lookup", map[string]any{"id": 1}, now))
	tools, err := m.ToolExecutions(threadID)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, ToolRunning, tools[0].Status)

	require.NoError(t, m.EndToolExecution(threadID, "lookup", map[string]any{"ok": true}, now.Add(time.Second)))
	tools, err = m.ToolExecutions(threadID)
	require.NoError(t, err)
	assert.Equal(t, ToolComplete, tools[0].Status)
}

func TestMemStoreMessagesPreserveInsertionOrder(t *testing.T) {
	m := NewMemStore()
	threadID, _ := m.ThreadID("node-a")
	now := time.Now().UTC()

	require.NoError(t, m.UpsertMessage(StoredMessage{MessageID: "m1", ThreadID: threadID, Status: MessageComplete, StartedAt: now, UpdatedAt: now}))
	require.NoError(t, m.UpsertMessage(StoredMessage{MessageID: "m2", ThreadID: threadID, Status: MessageComplete, StartedAt: now, UpdatedAt: now}))

	msgs, err := m.Messages(threadID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].MessageID)
	assert.Equal(t, "m2", msgs[1].MessageID)
}
