package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowproc/bpmnengine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishThenWaitDeliversQueuedMessage(t *testing.T) {
	b := New()
	delivered := b.Publish("m1", "k1", "payload-1")
	assert.False(t, delivered, "no waiter present yet, should queue")

	got, err := b.WaitForMessage(context.Background(), "task-1", "m1", "k1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "payload-1", got)
}

// Boundary scenario 6: publish(m,k,1), publish(m,k,2), then two waits in
// order receive 1 then 2 — FIFO per (messageRef, correlationKey).
func TestFIFOOrdering(t *testing.T) {
	b := New()
	b.Publish("m", "k", 1)
	b.Publish("m", "k", 2)

	first, err := b.WaitForMessage(context.Background(), "t1", "m", "k", time.Second)
	require.NoError(t, err)
	second, err := b.WaitForMessage(context.Background(), "t2", "m", "k", time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestWaiterServedSynchronously(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	var got any
	var err error

	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err = b.WaitForMessage(context.Background(), "t1", "m", "k", time.Second)
	}()

	// give the waiter a moment to register
	time.Sleep(20 * time.Millisecond)
	delivered := b.Publish("m", "k", "hello")
	wg.Wait()

	assert.True(t, delivered)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestWaitTimesOut(t *testing.T) {
	b := New()
	_, err := b.WaitForMessage(context.Background(), "t1", "m", "k", 10*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *workflow.MessageTimeout
	require.ErrorAs(t, err, &timeoutErr)
}

func TestEmptyMessageRefMatchesAny(t *testing.T) {
	b := New()
	b.Publish("anyRef", "k", "payload")
	got, err := b.WaitForMessage(context.Background(), "t1", "", "k", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestPublishTwiceNoWaiterQueuesBoth(t *testing.T) {
	b := New()
	b.Publish("m", "k", "a")
	b.Publish("m", "k", "b")
	msgs := b.ListQueuedMessages()
	assert.Len(t, msgs, 2)
}

func TestCancelledContextRemovesWaiter(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.WaitForMessage(ctx, "t1", "m", "k", time.Minute)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.Empty(t, b.ListWaiters())
}
