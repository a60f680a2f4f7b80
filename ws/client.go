package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 90 * time.Second
	maxMessageSize  = 4096
	sendBufferSize  = 256
)

// Client is one WebSocket connection of a user.
//
// Two goroutines serve it: ReadPump consumes client frames (heartbeats) and
// WritePump drains the send channel. Only the hub closes send.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	mu     sync.Mutex // guards conn writes

	expiryMu sync.Mutex
	expiry   *clock.Timer
}

// armExpiry schedules the token-expired shutdown for exp.
func (c *Client) armExpiry(exp time.Time) {
	c.expiryMu.Lock()
	defer c.expiryMu.Unlock()

	d := exp.Sub(c.hub.clock.Now())
	if d < 0 {
		d = 0
	}
	c.expiry = c.hub.clock.AfterFunc(d, func() { c.hub.expire(c) })
}

func (c *Client) stopExpiry() {
	c.expiryMu.Lock()
	defer c.expiryMu.Unlock()

	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

// ReadPump blocks until the connection fails or is closed, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.hub.sendTo(c, Event{Op: OpHeartbeatAck})

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// WritePump writes queued frames until the hub closes send, then sends a
// close frame.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	c.writeMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
