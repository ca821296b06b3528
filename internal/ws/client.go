package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Client wraps one live socket. It satisfies presence.Conn: Deliver queues a
// frame without blocking, dropping it if the client can't keep up (the client
// reconciles via pull, the store is authoritative).
type Client struct {
	conn     *websocket.Conn
	userID   string
	socketID string
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, userID, socketID string, buffer int) *Client {
	return &Client{
		conn:     conn,
		userID:   userID,
		socketID: socketID,
		send:     make(chan []byte, buffer),
	}
}

func (c *Client) UserID() string   { return c.userID }
func (c *Client) SocketID() string { return c.socketID }

func (c *Client) Deliver(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// writePump owns all writes on the socket: queued frames plus keepalive pings.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
