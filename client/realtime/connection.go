package realtime

import (
	"context"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// Connection is the manager's transport handle. Its goroutine dials,
// serves and redials until stopped, the attempt budget runs out, or the
// server ends the session.
type Connection struct {
	m *Manager

	mu       sync.Mutex
	state    State
	attempts int
	conn     Conn
	cancel   context.CancelFunc
	active   bool // goroutine running
}

func newConnection(m *Manager) *Connection {
	return &Connection{m: m}
}

// State is the connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts is the number of failed attempts since the last successful
// connect.
func (c *Connection) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Connection) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Connection) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.active = true
	c.attempts = 0
	go c.run(ctx)
}

// stop cancels the goroutine and closes the transport. It does not wait.
func (c *Connection) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.active = false
	c.setStateLocked(Disconnected)
}

func (c *Connection) write(op string, data any) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if conn == nil || state != Connected {
		return ErrNotConnected
	}
	return conn.Write(op, data)
}

func (c *Connection) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.m.setState(s)
}

func (c *Connection) setState(ctx context.Context, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() == nil {
		c.setStateLocked(s)
	}
}

func (c *Connection) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		if ctx.Err() == nil {
			c.active = false
			c.setStateLocked(Disconnected)
		}
		c.mu.Unlock()
	}()

	retry := c.m.opts.Backoff.policy(c.m.opts.Clock, c.m.opts.MaxAttempts)

	for {
		c.setState(ctx, Connecting)

		conn, err := c.m.opts.Dialer.Dial(ctx, c.m.currentCredential())
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}

		if err != nil {
			c.setState(ctx, Disconnected)
			c.m.connectFailed(err)
			if !c.wait(ctx, retry) {
				return
			}
			continue
		}

		c.mu.Lock()
		// stop may have run since Dial returned; the transport is ours to close.
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.attempts = 0
		c.setStateLocked(Connected)
		c.mu.Unlock()
		retry.Reset()
		c.m.connected()

		terminal := c.serve(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			_ = conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		if ctx.Err() != nil || terminal {
			return
		}

		// The server or the network dropped us; reconnect.
		c.setState(ctx, Disconnected)
		if !c.wait(ctx, retry) {
			return
		}
	}
}

// wait sleeps before the next attempt and reports whether to make it.
func (c *Connection) wait(ctx context.Context, retry backoff.BackOff) bool {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	delay := retry.NextBackOff()
	if delay == backoff.Stop {
		log.Printf("[realtime] giving up after %d attempts", attempt-1)
		return false
	}

	timer := c.m.opts.Clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve reads events until the connection ends. It reports true when the
// server ended the session, in which case there is nothing to reconnect to.
func (c *Connection) serve(ctx context.Context, conn Conn) (terminal bool) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeat(hbCtx, conn)

	for {
		ev, err := conn.Read()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[realtime] connection lost: %v", err)
			}
			return false
		}

		switch ev.Op {
		case OpTokenExpired, OpForceLogout:
			log.Printf("[realtime] server ended the session: %s", ev.Op)
			c.m.escalate(ev.Op)
			c.m.dispatch(ev)
			return true
		default:
			c.m.dispatch(ev)
		}
	}
}

func (c *Connection) heartbeat(ctx context.Context, conn Conn) {
	ticker := c.m.opts.Clock.Ticker(c.m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(OpHeartbeat, nil); err != nil {
				log.Printf("[realtime] heartbeat failed: %v", err)
				return
			}
		}
	}
}
