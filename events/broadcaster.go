package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Observer receives broadcast events. Transport adapters (the websocket
// hub) implement this by pushing the marshaled frame to their client
// connection; a failed Send marks the observer dead.
type Observer interface {
	Send(Event) error
}

// Broadcaster fans runtime events out to registered observers and tracks
// which nodes are presently cancellable, mirroring agui_server.py's
// broadcast-to-all-clients loop plus its cancellable/cancelled node sets.
// Modifications to the observer set are serialized by mu; a failed write
// evicts the observer after the broadcast loop completes (§5).
type Broadcaster struct {
	mu        sync.RWMutex
	observers map[Observer]struct{}

	nodeCategories map[string]map[Category]bool // nil entry = no filter, publish everything

	cancelMu    sync.Mutex
	cancellable map[string]chan struct{}
	cancelled   map[string]bool

	// store, if set, receives a raw audit-log row for every elementId-
	// tagged event broadcast, satisfying the §3 invariant that the
	// replay store is a strict superset of what live observers received.
	store Store
}

// NewBroadcaster returns an empty Broadcaster. Pass a non-nil Store via
// SetStore to also persist every elementId-tagged event to the raw audit
// log as it is broadcast.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		observers:      make(map[Observer]struct{}),
		nodeCategories: make(map[string]map[Category]bool),
		cancellable:    make(map[string]chan struct{}),
		cancelled:      make(map[string]bool),
	}
}

// SetStore attaches the durable event store so Broadcast can append every
// elementId-tagged event to the raw audit log.
func (b *Broadcaster) SetStore(s Store) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = s
}

// Register adds an observer to the fan-out set.
func (b *Broadcaster) Register(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o] = struct{}{}
}

// Unregister removes an observer.
func (b *Broadcaster) Unregister(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, o)
}

// SetNodeCategories restricts which event categories a node's events are
// broadcast under, per node.properties' declared subset (§4.5). Passing a
// nil/empty slice clears any filter (publish every category for that
// node).
func (b *Broadcaster) SetNodeCategories(nodeID string, categories []Category) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(categories) == 0 {
		delete(b.nodeCategories, nodeID)
		return
	}
	set := make(map[Category]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	b.nodeCategories[nodeID] = set
}

// Broadcast pushes event to every registered observer, dropping it first
// for any node whose declared category filter excludes it. Unknown event
// types are always published. Observers whose Send fails are evicted
// after the loop (lock-free broadcast over a snapshot, per §9).
func (b *Broadcaster) Broadcast(event Event) {
	if event.ElementID != "" {
		if cat, known := CategoryOf(event.Type); known {
			b.mu.RLock()
			filter, hasFilter := b.nodeCategories[event.ElementID]
			b.mu.RUnlock()
			if hasFilter && !filter[cat] {
				return
			}
		}

		b.mu.RLock()
		store := b.store
		b.mu.RUnlock()
		if store != nil {
			if blob, err := json.Marshal(event); err == nil {
				_ = store.AppendEvent(event.ElementID, event.Type, blob, event.Timestamp)
			}
		}
	}

	b.mu.RLock()
	snapshot := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		snapshot = append(snapshot, o)
	}
	b.mu.RUnlock()

	var dead []Observer
	for _, o := range snapshot {
		if err := o.Send(event); err != nil {
			dead = append(dead, o)
		}
	}
	if len(dead) > 0 {
		b.mu.Lock()
		for _, o := range dead {
			delete(b.observers, o)
		}
		b.mu.Unlock()
	}
}

// MarkCancellable registers nodeID as eligible for a task.cancel.request
// and returns the channel that closes when cancellation is requested.
func (b *Broadcaster) MarkCancellable(nodeID string) <-chan struct{} {
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	ch := make(chan struct{})
	b.cancellable[nodeID] = ch
	delete(b.cancelled, nodeID)
	return ch
}

// ClearCancellable removes nodeID from the cancellable set once its
// executor has returned (success, failure, or cancellation already
// observed).
func (b *Broadcaster) ClearCancellable(nodeID string) {
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	delete(b.cancellable, nodeID)
}

// RequestCancel implements task.cancel.request: rejects if nodeID is not
// cancellable or already cancelled, otherwise moves it to cancelled and
// closes its signal channel.
func (b *Broadcaster) RequestCancel(nodeID string) error {
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()

	if b.cancelled[nodeID] {
		return fmt.Errorf("node %q already cancelled", nodeID)
	}
	ch, ok := b.cancellable[nodeID]
	if !ok {
		return fmt.Errorf("node %q is not cancellable", nodeID)
	}
	b.cancelled[nodeID] = true
	delete(b.cancellable, nodeID)
	close(ch)
	return nil
}

// IsCancelled reports whether nodeID has had a cancellation requested.
func (b *Broadcaster) IsCancelled(nodeID string) bool {
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	return b.cancelled[nodeID]
}
