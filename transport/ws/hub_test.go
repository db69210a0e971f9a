package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowproc/bpmnengine/bus"
	"github.com/flowproc/bpmnengine/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubStreamsBroadcastEventsToObserver(t *testing.T) {
	broadcaster := events.NewBroadcaster()
	hub := NewHub(broadcaster, nil, bus.New(), zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)

	broadcaster.Broadcast(events.New("workflow.started", "", map[string]any{"workflowName": "demo"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got["type"] != "workflow.started" {
		t.Fatalf("got type %v, want workflow.started", got["type"])
	}
	if got["workflowName"] != "demo" {
		t.Fatalf("got workflowName %v, want demo", got["workflowName"])
	}
}

func TestHubRespondsToPing(t *testing.T) {
	broadcaster := events.NewBroadcaster()
	hub := NewHub(broadcaster, nil, bus.New(), zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got["type"] != "pong" {
		t.Fatalf("got type %v, want pong", got["type"])
	}
}

func TestHubDeliversUserTaskCompletionOnBus(t *testing.T) {
	broadcaster := events.NewBroadcaster()
	b := bus.New()
	hub := NewHub(broadcaster, nil, b, zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{
		"type":     "userTask.complete",
		"taskId":   "approval-1",
		"decision": "approved",
		"user":     "alice",
	}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Snapshot().QueuedMessages > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	msgs := b.ListQueuedMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 queued message, got %d", len(msgs))
	}
	if msgs[0].CorrelationKey != "approval-1" {
		t.Fatalf("got correlationKey %q, want approval-1", msgs[0].CorrelationKey)
	}
	payload, ok := msgs[0].Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload has unexpected type %T", msgs[0].Payload)
	}
	if payload["decision"] != "approved" {
		t.Fatalf("got decision %v, want approved", payload["decision"])
	}
}

func TestHubRejectsCancelRequestForUnknownNode(t *testing.T) {
	broadcaster := events.NewBroadcaster()
	hub := NewHub(broadcaster, nil, bus.New(), zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{
		"type":      "task.cancel.request",
		"elementId": "notRunning",
		"reason":    "user requested",
	}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got["type"] != "task.cancel.failed" {
		t.Fatalf("got type %v, want task.cancel.failed", got["type"])
	}
}
