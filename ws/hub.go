package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// EventPublisher is what services need from the hub. Services depend on this
// interface, not on *Hub, so they can be tested with a fake.
type EventPublisher interface {
	BroadcastToUser(userID string, event Event)
	// IsOnline reports whether the user has at least one live connection.
	IsOnline(userID string) bool
	// DisconnectUser sends a final event to every connection of the user and
	// closes them.
	DisconnectUser(userID string, final Event)
}

// Hub tracks live connections by user. A user may hold several connections
// (tabs, devices); every event addressed to the user goes to all of them.
//
// Registration happens synchronously in the HTTP handler, before the ready
// event is queued, so nothing published after the handshake can miss the new
// connection. Removal is different: pumps and full send buffers hand the
// client to the unregister channel and Run removes it, because they cannot
// take h.mu while a broadcast holds it.
//
// Every outbound frame gets a sequence number from seq. Numbers increase
// across the whole hub, not per user, so a client can only rely on them
// growing within one connection.
//
// Connections whose token carries an exp claim get a timer on the hub's
// clock. When it fires the client receives token_expired and is removed;
// the clock is injected so tests can move past expiry without sleeping.
type Hub struct {
	// clients: userID → connection set. The bool is always true.
	clients map[string]map[*Client]bool

	// mu guards clients. Broadcasts only read, so they share the lock;
	// add, remove, disconnect and expire take it exclusively.
	mu sync.RWMutex

	unregister chan *Client

	// seq stamps every encoded event.
	seq atomic.Int64

	clock    clock.Clock
	pongWait time.Duration
}

// NewHub creates an empty hub. Call Run in its own goroutine.
func NewHub(clk clock.Clock, pongWait time.Duration) *Hub {
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		unregister: make(chan *Client),
		clock:      clk,
		pongWait:   pongWait,
	}
}

// Run processes unregister requests from pumps and dropped connections.
func (h *Hub) Run() {
	for client := range h.unregister {
		h.removeClient(client)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	log.Printf("[ws] client connected: user=%s (connections for user: %d)",
		client.userID, len(h.clients[client.userID]))
}

// removeClient is safe to call more than once for the same client.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.userID]
	if !ok || !clients[client] {
		return
	}

	delete(clients, client)
	client.stopExpiry()
	close(client.send)

	if len(clients) == 0 {
		delete(h.clients, client.userID)
		log.Printf("[ws] user fully disconnected: %s", client.userID)
	} else {
		log.Printf("[ws] client disconnected: user=%s (remaining: %d)", client.userID, len(clients))
	}
}

// BroadcastToUser sends event to every connection of userID. A connection
// whose buffer is full is dropped.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		h.deliverLocked(client, data)
	}
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount is the number of live connections of userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// TotalConnections is the number of live connections across all users.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// DisconnectUser queues final on every connection of userID and closes them.
// Queued frames are still flushed by the write pump before the close frame.
//
// A full buffer skips final rather than blocking the caller. That connection
// is still closed, just without the final event.
func (h *Hub) DisconnectUser(userID string, final Event) {
	data, ok := h.encode(final)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
		}
		h.removeLocked(client)
	}
}

// sendTo delivers event to a single connection if it is still registered.
func (h *Hub) sendTo(client *Client, event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.userID][client] {
		h.deliverLocked(client, data)
	}
}

// expire ends one connection whose credential has reached its exp claim.
func (h *Hub) expire(client *Client) {
	data, ok := h.encode(Event{Op: OpTokenExpired, Data: SessionEventData{Reason: "token expired"}})
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client.userID][client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
	h.removeLocked(client)
	log.Printf("[ws] credential expired: user=%s", client.userID)
}

// deliverLocked needs h.mu held (read or write).
func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", client.userID)
		go func(c *Client) { h.unregister <- c }(client)
	}
}

func (h *Hub) encode(event Event) ([]byte, bool) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return nil, false
	}
	return data, true
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.stopExpiry()
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
