package events

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreThreadIDIsStableAndUnique(t *testing.T) {
	store := newTestSQLiteStore(t)

	id1, err := store.ThreadID("node-a")
	require.NoError(t, err)
	id2, err := store.ThreadID("node-a")
	require.NoError(t, err)
	id3, err := store.ThreadID("node-b")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestSQLiteStoreThinkingAndToolExecutionRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	threadID, err := store.ThreadID("agentic-1")
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendThinking(threadID, "considering options", now))
	require.NoError(t, store.StartToolExecution(threadID, "search", map[string]any{"query": "weather"}, now.Add(time.Second)))
	require.NoError(t, store.EndToolExecution(threadID, "search", map[string]any{"result": "sunny"}, now.Add(2*time.Second)))

	thinking, err := store.ThinkingEvents(threadID)
	require.NoError(t, err)
	require.Len(t, thinking, 1)
	assert.Equal(t, "considering options", thinking[0].Message)

	tools, err := store.ToolExecutions(threadID)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, ToolComplete, tools[0].Status)
	assert.Equal(t, "sunny", tools[0].Result["result"])
}

func TestSQLiteStoreMessageUpsertTransitionsStatus(t *testing.T) {
	store := newTestSQLiteStore(t)
	threadID, err := store.ThreadID("node-c")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.UpsertMessage(StoredMessage{
		MessageID: "msg-1", ThreadID: threadID, Role: "assistant", Content: "Hel",
		Status: MessageStreaming, StartedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.UpsertMessage(StoredMessage{
		MessageID: "msg-1", ThreadID: threadID, Role: "assistant", Content: "Hello world.",
		Status: MessageComplete, StartedAt: now, UpdatedAt: now.Add(time.Second),
	}))

	msgs, err := store.Messages(threadID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageComplete, msgs[0].Status)
	assert.Equal(t, "Hello world.", msgs[0].Content)
}

func TestSQLiteStoreAppendEventPersists(t *testing.T) {
	store := newTestSQLiteStore(t)
	err := store.AppendEvent("node-a", "task.progress", []byte(`{"fraction":0.5}`), time.Now().UTC())
	require.NoError(t, err)
}

func TestSQLiteStoreCloseIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
