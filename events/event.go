// Package events implements the Event Broadcasting & Replay Store (C5):
// live fan-out of runtime events to observers, and durable persistence of
// messaging/tool/thinking streams so a late observer can reconstruct
// history.
package events

import (
	"encoding/json"
	"time"
)

// Category is one of the five fixed event categories from §6's observer
// channel catalogue.
type Category string

const (
	CategoryMessaging Category = "messaging"
	CategoryTool       Category = "tool"
	CategoryState      Category = "state"
	CategoryLifecycle  Category = "lifecycle"
	CategorySpecial    Category = "special"
)

// categoryByType is the fixed mapping from event type to category (§6).
// Event types absent from this table are always published (safe default)
// regardless of any per-node category filter.
var categoryByType = map[string]Category{
	"text.message.start":   CategoryMessaging,
	"text.message.content": CategoryMessaging,
	"text.message.end":     CategoryMessaging,
	"text.message.chunk":   CategoryMessaging,

	"task.tool.start": CategoryTool,
	"task.tool.end":   CategoryTool,
	"agent.tool_use":  CategoryTool,

	"messages.snapshot": CategoryState,
	"state.snapshot":    CategoryState,
	"state.delta":       CategoryState,

	"workflow.started":    CategoryLifecycle,
	"workflow.completed":  CategoryLifecycle,
	"element.activated":   CategoryLifecycle,
	"element.completed":   CategoryLifecycle,
	"task.progress":       CategoryLifecycle,
	"task.error":          CategoryLifecycle,
	"task.cancelled":      CategoryLifecycle,
	"task.cancellable":    CategoryLifecycle,
	"task.cancelling":     CategoryLifecycle,
	"task.cancel.failed":  CategoryLifecycle,
	"gateway.evaluating":  CategoryLifecycle,
	"gateway.path_taken":  CategoryLifecycle,

	"task.thinking":    CategorySpecial,
	"userTask.created": CategorySpecial,
	"ping":             CategorySpecial,
	"pong":             CategorySpecial,
	"replay.request":   CategorySpecial,
	"clear.history":    CategorySpecial,
}

// CategoryOf returns the fixed category for an event type, and whether the
// type is in the catalogue at all.
func CategoryOf(eventType string) (Category, bool) {
	c, ok := categoryByType[eventType]
	return c, ok
}

// Event is the typed envelope pushed to observers: {type, elementId?,
// timestamp, ...kindFields}.
type Event struct {
	Type      string         `json:"type"`
	ElementID string         `json:"elementId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"-"`
}

// MarshalJSON flattens Fields alongside the envelope's fixed keys so wire
// output matches the original's ad hoc dict-based frames rather than
// nesting everything under a "fields" key.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = e.Type
	if e.ElementID != "" {
		out["elementId"] = e.ElementID
	}
	out["timestamp"] = e.Timestamp
	return json.Marshal(out)
}

// New builds an Event with the given type, element scope, and extra
// fields, stamping the current time.
func New(eventType, elementID string, fields map[string]any) Event {
	return Event{Type: eventType, ElementID: elementID, Timestamp: time.Now().UTC(), Fields: fields}
}
