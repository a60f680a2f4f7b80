// Package realtime owns the client's single realtime connection: it dials,
// reconnects with backoff, keeps the connection alive, fans incoming events
// out to subscribers and escalates authentication failures to the session.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// State of the connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Server ops the manager reacts to itself.
const (
	OpHeartbeat    = "heartbeat"
	OpTokenExpired = "token-expired"
	OpForceLogout  = "force-logout"
)

// ErrNotConnected is returned by Emit while no connection is up.
var ErrNotConnected = errors.New("realtime: not connected")

// Defaults for Options.
const (
	DefaultMaxAttempts          = 10
	DefaultAuthFailureThreshold = 8
	DefaultLivenessInterval     = 30 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	Dialer Dialer
	Clock  clock.Clock

	// MaxAttempts bounds consecutive failed reconnection attempts before the
	// connection rests until the next liveness tick.
	MaxAttempts int
	Backoff     Backoff
	// AuthFailureThreshold is how many consecutive authentication failures
	// end the session.
	AuthFailureThreshold int
	LivenessInterval     time.Duration
	HeartbeatInterval    time.Duration

	// OnSessionExpired is called once per escalation, on its own goroutine.
	OnSessionExpired func(reason string)
	// OnStateChange observes every state transition. It runs with the
	// connection lock held and must not call back into the Manager.
	OnStateChange func(State)
}

// Manager owns at most one live Connection.
type Manager struct {
	opts Options

	mu           sync.Mutex
	credential   string
	conn         *Connection
	active       bool
	authFailures int
	escalated    bool
	stopLiveness context.CancelFunc

	hmu      sync.RWMutex
	handlers map[string]map[int]func(json.RawMessage)
	nextID   int
}

// NewManager builds a Manager. Nothing is dialed until Authenticate or
// Connection is called.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff.Max <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.AuthFailureThreshold <= 0 {
		opts.AuthFailureThreshold = DefaultAuthFailureThreshold
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = DefaultLivenessInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Manager{
		opts:     opts,
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
}

// Authenticate attaches credential to every later (re)connection. A live
// connection is cycled so the new credential takes effect at once; without
// one, a connection is created and connects.
func (m *Manager) Authenticate(credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credential = credential
	m.active = true
	// A new credential starts a new failure streak.
	m.authFailures = 0
	m.escalated = false
	m.startLivenessLocked()

	if m.conn != nil {
		m.conn.stop()
	}
	m.conn = newConnection(m)
	m.conn.start()
}

// Connection returns the connection, creating it when absent and
// re-issuing connect when it is neither connected nor trying to connect.
// It never creates a second live connection.
func (m *Manager) Connection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked()
}

func (m *Manager) ensureLocked() *Connection {
	if m.conn == nil {
		m.conn = newConnection(m)
	}
	if !m.conn.running() {
		m.conn.start()
	}
	return m.conn
}

// Disconnect closes the connection and releases it; the next Connection
// call builds a fresh one. It does not wait for the connection goroutine.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	m.authFailures = 0
	m.escalated = false
	if m.stopLiveness != nil {
		m.stopLiveness()
		m.stopLiveness = nil
	}
	if m.conn != nil {
		m.conn.stop()
		m.conn = nil
	}
}

// State is the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return Disconnected
	}
	return c.State()
}

// On subscribes fn to op. Handlers run on the connection's read goroutine
// and must not block.
func (m *Manager) On(op string, fn func(data json.RawMessage)) (unsubscribe func()) {
	m.hmu.Lock()
	defer m.hmu.Unlock()

	if m.handlers[op] == nil {
		m.handlers[op] = make(map[int]func(json.RawMessage))
	}
	id := m.nextID
	m.nextID++
	m.handlers[op][id] = fn

	return func() {
		m.hmu.Lock()
		delete(m.handlers[op], id)
		m.hmu.Unlock()
	}
}

// Emit sends op with data over the live connection.
func (m *Manager) Emit(op string, data any) error {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.write(op, data)
}

func (m *Manager) dispatch(ev Event) {
	m.hmu.RLock()
	fns := make([]func(json.RawMessage), 0, len(m.handlers[ev.Op]))
	for _, fn := range m.handlers[ev.Op] {
		fns = append(fns, fn)
	}
	m.hmu.RUnlock()

	for _, fn := range fns {
		fn(ev.Data)
	}
}

func (m *Manager) currentCredential() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential
}

// connected resets the authentication failure streak.
func (m *Manager) connected() {
	m.mu.Lock()
	m.authFailures = 0
	m.escalated = false
	m.mu.Unlock()
}

// connectFailed counts err and escalates once the authentication failure
// threshold is reached.
func (m *Manager) connectFailed(err error) {
	if !IsAuthError(err) {
		log.Printf("[realtime] connect failed: %v", err)
		return
	}

	m.mu.Lock()
	m.authFailures++
	n := m.authFailures
	reached := n >= m.opts.AuthFailureThreshold
	m.mu.Unlock()

	log.Printf("[realtime] authentication failed (%d/%d): %v", n, m.opts.AuthFailureThreshold, err)
	if reached {
		m.escalate("realtime authentication failed")
	}
}

// escalate calls OnSessionExpired unless it already fired since the last
// successful connect, Authenticate or Disconnect.
func (m *Manager) escalate(reason string) {
	m.mu.Lock()
	if m.escalated {
		m.mu.Unlock()
		return
	}
	m.escalated = true
	cb := m.opts.OnSessionExpired
	m.mu.Unlock()

	if cb != nil {
		go cb(reason)
	}
}

func (m *Manager) setState(s State) {
	if cb := m.opts.OnStateChange; cb != nil {
		cb(s)
	}
}

// startLivenessLocked runs the liveness ticker while the manager is active.
func (m *Manager) startLivenessLocked() {
	if m.stopLiveness != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopLiveness = cancel

	ticker := m.opts.Clock.Ticker(m.opts.LivenessInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkLiveness()
			}
		}
	}()
}

// checkLiveness recreates a missing connection or reconnects a dead one.
func (m *Manager) checkLiveness() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	if m.conn == nil || !m.conn.running() {
		log.Println("[realtime] liveness check: connection down, reconnecting")
		m.ensureLocked()
	}
}
