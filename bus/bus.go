// Package bus implements the Message Correlation Bus (C4): the rendezvous
// between external publishers and receive-nodes, keyed by
// (messageRef, correlationKey).
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/flowproc/bpmnengine/workflow"
)

// key is the (messageRef, correlationKey) pair the bus routes on.
type key struct {
	messageRef     string
	correlationKey string
}

// waiter is a registered wait for a message on a key, optionally filtered
// to a specific messageRef (empty matches any).
type waiter struct {
	taskID     string
	messageRef string
	deliver    chan any
	timedOut   *bool
}

// Bus is a process-wide singleton protected by a single mutex (§4.4); no
// lock is held across a suspension — waitForMessage releases the lock
// before awaiting delivery or timeout.
type Bus struct {
	mu       sync.Mutex
	queued   map[key][]any
	waiters  map[key][]*waiter
	stats    Stats
}

// Stats mirrors the original's get_stats() introspection surface.
type Stats struct {
	QueuedMessages int
	WaitingTasks   int
	TotalPublished int
	TotalDelivered int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		queued:  make(map[key][]any),
		waiters: make(map[key][]*waiter),
	}
}

// Publish delivers payload immediately to the head waiter for the key if
// one exists and its filter matches messageRef; otherwise it enqueues the
// payload. Returns whether delivery was synchronous.
func (b *Bus) Publish(messageRef, correlationKey string, payload any) bool {
	k := key{messageRef, correlationKey}

	b.mu.Lock()
	b.stats.TotalPublished++

	// Waiters with an empty messageRef filter are registered under
	// ("", correlationKey); fall back to them when no exact waiter exists.
	wk := k
	if len(b.waiters[wk]) == 0 {
		wk = key{"", correlationKey}
	}
	ws := b.waiters[wk]
	for i, w := range ws {
		if w.messageRef != "" && w.messageRef != messageRef {
			continue
		}
		// Remove this waiter from the list before releasing the lock.
		b.waiters[wk] = append(append([]*waiter{}, ws[:i]...), ws[i+1:]...)
		if len(b.waiters[wk]) == 0 {
			delete(b.waiters, wk)
		}
		b.stats.TotalDelivered++
		b.mu.Unlock()

		// Deliver outside the lock; deliver channel is buffered so this
		// never blocks even if the waiter already timed out.
		w.deliver <- payload
		return true
	}

	b.queued[k] = append(b.queued[k], payload)
	b.stats.QueuedMessages++
	b.mu.Unlock()
	return false
}

// WaitForMessage blocks until a message matching (messageRef,
// correlationKey) arrives, timeout elapses, or ctx is cancelled.
// messageRef may be empty to match any message published under
// correlationKey.
func (b *Bus) WaitForMessage(ctx context.Context, taskID, messageRef, correlationKey string, timeout time.Duration) (any, error) {
	k := key{messageRef, correlationKey}

	b.mu.Lock()
	qk := k
	if messageRef == "" && len(b.queued[qk]) == 0 {
		for cand := range b.queued {
			if cand.correlationKey == correlationKey {
				qk = cand
				break
			}
		}
	}
	if q := b.queued[qk]; len(q) > 0 {
		payload := q[0]
		b.queued[qk] = q[1:]
		if len(b.queued[qk]) == 0 {
			delete(b.queued, qk)
		}
		b.stats.QueuedMessages--
		b.stats.TotalDelivered++
		b.mu.Unlock()
		return payload, nil
	}

	w := &waiter{taskID: taskID, messageRef: messageRef, deliver: make(chan any, 1)}
	b.waiters[k] = append(b.waiters[k], w)
	b.stats.WaitingTasks++
	b.mu.Unlock()

	var timer *time.Timer
	var timerC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case payload := <-w.deliver:
		return payload, nil
	case <-timerC:
		b.removeWaiter(k, w)
		return nil, &workflow.MessageTimeout{MessageRef: messageRef, CorrelationKey: correlationKey}
	case <-ctx.Done():
		b.removeWaiter(k, w)
		return nil, ctx.Err()
	}
}

func (b *Bus) removeWaiter(k key, target *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := b.waiters[k]
	for i, w := range ws {
		if w == target {
			b.waiters[k] = append(ws[:i:i], ws[i+1:]...)
			b.stats.WaitingTasks--
			if len(b.waiters[k]) == 0 {
				delete(b.waiters, k)
			}
			return
		}
	}
}

// QueuedMessage describes one unconsumed queued message for introspection.
type QueuedMessage struct {
	MessageRef     string
	CorrelationKey string
	Payload        any
}

// ListQueuedMessages returns every currently-queued, unconsumed message.
func (b *Bus) ListQueuedMessages() []QueuedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []QueuedMessage
	for k, payloads := range b.queued {
		for _, p := range payloads {
			out = append(out, QueuedMessage{MessageRef: k.messageRef, CorrelationKey: k.correlationKey, Payload: p})
		}
	}
	return out
}

// WaitingTask describes one registered waiter for introspection.
type WaitingTask struct {
	TaskID         string
	MessageRef     string
	CorrelationKey string
}

// ListWaiters returns every currently-registered waiter.
func (b *Bus) ListWaiters() []WaitingTask {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []WaitingTask
	for k, ws := range b.waiters {
		for _, w := range ws {
			out = append(out, WaitingTask{TaskID: w.taskID, MessageRef: w.messageRef, CorrelationKey: k.correlationKey})
		}
	}
	return out
}

// ClearMessages drops every queued message for a correlationKey across all
// messageRefs, returning the number removed. Used by the webhook queue
// introspection DELETE endpoint.
func (b *Bus) ClearMessages(correlationKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for k, payloads := range b.queued {
		if k.correlationKey != correlationKey {
			continue
		}
		removed += len(payloads)
		delete(b.queued, k)
	}
	b.stats.QueuedMessages -= removed
	return removed
}

// Snapshot returns a copy of aggregate bus statistics.
func (b *Bus) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
