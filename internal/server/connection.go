package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Outbound buffer per connection.
	sendBuffer = 64
)

// Connection wraps one client WebSocket with buffered writes and the
// read/write pumps.
type Connection struct {
	id     string
	ws     *websocket.Conn
	send   chan Message
	logger *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(id string, ws *websocket.Conn, logger *log.Logger) *Connection {
	return &Connection{
		id:     id,
		ws:     ws,
		send:   make(chan Message, sendBuffer),
		logger: logger.WithPrefix("conn"),
		done:   make(chan struct{}),
	}
}

// Send queues a message for delivery. A full buffer counts as a dead peer.
func (c *Connection) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrConnectionGone
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("send buffer full, closing connection", "connection", c.id)
		c.close()
		return ErrConnectionGone
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// readPump feeds inbound frames into the dispatcher until the peer goes
// away, then runs the disconnect flow.
func (c *Connection) readPump(ctx context.Context, d *Dispatcher, hub *Hub) {
	defer func() {
		c.close()
		hub.remove(c.id)
		d.HandleDisconnect(ctx, c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "connection", c.id, "err", err)
			}
			return
		}
		d.HandleFrame(ctx, c.id, raw)
	}
}

// writePump drains the send buffer onto the socket and keeps the peer
// alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
