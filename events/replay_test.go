package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayEmitsInTimestampOrder(t *testing.T) {
	store := NewMemStore()
	threadID, err := store.ThreadID("node-a")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.StartToolExecution(threadID, "search", map[string]any{"q": "x"}, base))
	require.NoError(t, store.EndToolExecution(threadID, "search", map[string]any{"ok": true}, base.Add(time.Second)))
	require.NoError(t, store.AppendThinking(threadID, "thinking hard", base.Add(500*time.Millisecond)))
	require.NoError(t, store.UpsertMessage(StoredMessage{
		MessageID: "m1", ThreadID: threadID, Status: MessageComplete,
		Content: "done", StartedAt: base, UpdatedAt: base.Add(2 * time.Second),
	}))

	rec := &recordingObserver{}
	err = Replay(context.Background(), store, "node-a", rec)
	require.NoError(t, err)

	require.Len(t, rec.events, 4)
	assert.Equal(t, "task.tool.start", rec.events[0].Type)
	assert.Equal(t, "task.thinking", rec.events[1].Type)
	assert.Equal(t, "task.tool.end", rec.events[2].Type)
	assert.Equal(t, "text.message.chunk", rec.events[3].Type)
}

func TestReplayRespectsContextCancellation(t *testing.T) {
	store := NewMemStore()
	threadID, _ := store.ThreadID("node-a")
	base := time.Now().UTC()
	require.NoError(t, store.AppendThinking(threadID, "a", base))
	require.NoError(t, store.AppendThinking(threadID, "b", base.Add(time.Second)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recordingObserver{}
	err := Replay(ctx, store, "node-a", rec)
	require.Error(t, err)
	assert.Equal(t, 1, rec.count(), "first event sent before cancellation check")
}
