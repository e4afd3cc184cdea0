package chat

import (
	"TransitChat/logger"
	"TransitChat/tools/security"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 75 * time.Second
	pingPeriod = 25 * time.Second
)

// Client is one authenticated websocket session. A user may hold many
// at once (multi-device); each is tracked separately and has its own
// outbound queue drained by a single writer goroutine.
type Client struct {
	ConnID string
	UserID string
	Claims *security.Claims

	WS   *websocket.Conn
	Send chan []byte

	// sendMu serializes enqueue against closeSend: producers on other
	// goroutines (fan-out, typing timers) must never hit Send after it
	// is closed.
	sendMu sync.Mutex
	closed bool

	// guarded by the owning ConnManager's lock
	heartbeat time.Time
	expireAt  time.Time
}

func NewClient(connID string, claims *security.Claims, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID: connID,
		UserID: claims.UserID,
		Claims: claims,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
	}
}

// enqueue drops the frame when the queue is full: a slow reader must
// not stall the handler that produced the event. The client recovers
// missed state on its next join.
func (c *Client) enqueue(data []byte) bool {
	if data == nil {
		return false
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		logger.Warnf("[client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// writePump is the only goroutine allowed to write to the socket. It
// exits when Send is closed or a write fails; closing the socket then
// unblocks the read loop.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.WS.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WS.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WS.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("[client] write failed conn=" + c.ConnID)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
