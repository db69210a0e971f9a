package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowproc/bpmnengine/events"
)

// connObserver adapts one websocket connection into an events.Observer.
// Sends are funneled through a buffered channel and a single writer
// goroutine, since gorilla/websocket forbids concurrent writes on a
// connection.
type connObserver struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	outbox chan events.Event

	closeOnce sync.Once
}

func newConnObserver(conn *websocket.Conn, logger zerolog.Logger) *connObserver {
	return &connObserver{
		conn:   conn,
		logger: logger,
		outbox: make(chan events.Event, 256),
	}
}

// Send implements events.Observer. It never blocks on a slow client: a
// full outbox evicts the observer by returning an error, which the
// Broadcaster treats as a dead connection.
func (c *connObserver) Send(e events.Event) error {
	select {
	case c.outbox <- e:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *connObserver) send(e events.Event) {
	_ = c.Send(e)
}

func (c *connObserver) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-c.outbox:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connObserver) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

type slowConsumerError struct{}

func (slowConsumerError) Error() string { return "observer outbox full, dropping connection" }

var errSlowConsumer = slowConsumerError{}
