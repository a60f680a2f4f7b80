package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one frame on the realtime connection.
type Event struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// Conn is an open transport connection.
type Conn interface {
	// Read blocks for the next event. It fails once the connection is
	// closed.
	Read() (Event, error)
	Write(op string, data any) error
	Close() error
}

// Dialer opens a connection authenticated with credential.
type Dialer interface {
	Dial(ctx context.Context, credential string) (Conn, error)
}

// HandshakeError is a refused connection attempt.
type HandshakeError struct {
	StatusCode int
	Message    string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("realtime handshake refused: %d %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is an authentication-specific connection
// failure.
func IsAuthError(err error) bool {
	var he *HandshakeError
	if !errors.As(err, &he) {
		return false
	}
	return he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden
}

const (
	writeWait   = 10 * time.Second
	readTimeout = 90 * time.Second
)

// WebSocketDialer dials the server's /ws endpoint with gorilla/websocket.
type WebSocketDialer struct {
	URL    string // e.g. wss://glim.example/ws
	Dialer *websocket.Dialer
}

// NewWebSocketDialer derives the /ws endpoint from the API base URL.
func NewWebSocketDialer(baseURL string) (*WebSocketDialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return &WebSocketDialer{URL: u.String(), Dialer: websocket.DefaultDialer}, nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()

	c, resp, err := d.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Message: handshakeMessage(body)}
		}
		return nil, err
	}
	return &wsConn{conn: c}, nil
}

// handshakeMessage pulls the error text out of the server's JSON envelope,
// falling back to the raw body.
func handshakeMessage(body []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(string(body))
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // one writer at a time
}

func (c *wsConn) Read() (Event, error) {
	var ev Event
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	err := c.conn.ReadJSON(&ev)
	return ev, err
}

func (c *wsConn) Write(op string, data any) error {
	frame := struct {
		Op   string `json:"op"`
		Data any    `json:"d,omitempty"`
	}{op, data}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
