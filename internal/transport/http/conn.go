package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// wsConn is one authenticated socket. The writer goroutine is the only one
// writing frames; everyone else enqueues into a bounded buffer.
type wsConn struct {
	id       string
	identity domain.Identity
	ws       *websocket.Conn
	log      *slog.Logger

	mu      sync.Mutex
	send    chan outboundMessage[any]
	closed  bool
	dropped int

	done chan struct{}
}

func newWSConn(ws *websocket.Conn, identity domain.Identity, buffer int, log *slog.Logger) *wsConn {
	if buffer <= 0 {
		buffer = 64
	}
	id := uuid.NewString()
	return &wsConn{
		id:       id,
		identity: identity,
		ws:       ws,
		log:      log.With("conn_id", id, "user_id", identity.UserID),
		send:     make(chan outboundMessage[any], buffer),
		done:     make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Identity() domain.Identity { return c.identity }

func (c *wsConn) Send(event domain.Event) bool {
	return c.enqueue(outboundMessage[any]{Type: event.Type, Payload: event.Payload})
}

// enqueue never blocks. When the buffer is full the oldest pending frame is dropped.
func (c *wsConn) enqueue(msg outboundMessage[any]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
	}

	select {
	case old := <-c.send:
		c.dropped++
		c.log.Warn("send buffer full, dropped oldest frame", "dropped_type", old.Type, "dropped_total", c.dropped)
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsConn) ack(ackID string, payload any) {
	c.enqueue(outboundMessage[any]{Type: domain.EventAck, AckID: ackID, Payload: payload})
}

// close stops accepting frames; the writer flushes what is queued and exits.
func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug("ws write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
