package session

import (
	"log"
	"sync"
)

// Reason says which path detected the end of the session.
type Reason string

const (
	// ReasonExpired: the local expiry check failed.
	ReasonExpired Reason = "expired"
	// ReasonRealtimeAuth: the realtime connection kept failing authentication.
	ReasonRealtimeAuth Reason = "realtime-auth"
	// ReasonServerExpired: the server pushed token-expired.
	ReasonServerExpired Reason = "token-expired"
	// ReasonForceLogout: the server pushed force-logout.
	ReasonForceLogout Reason = "force-logout"
	// ReasonRejected: the server rejected the credential on validation.
	ReasonRejected Reason = "rejected"
	// ReasonSignOut: the user signed out. No expired flag is left behind.
	ReasonSignOut Reason = "sign-out"
)

// Disconnector closes the realtime connection.
type Disconnector interface {
	Disconnect()
}

// TerminatorOptions are the collaborators the terminator tears down. Any of
// them may be nil.
type TerminatorOptions struct {
	Connection Disconnector
	Cookies    CookieStore
	Flags      FlagStore
	Navigator  Navigator
}

// Terminator is the only code path that ends a session. Terminate may be
// called from any goroutine, any number of times.
type Terminator struct {
	store *Store

	mu   sync.Mutex
	opts TerminatorOptions
}

// NewTerminator builds a Terminator for store.
func NewTerminator(store *Store, opts TerminatorOptions) *Terminator {
	return &Terminator{store: store, opts: opts}
}

// SetConnection sets the connection to close. The realtime manager needs the
// terminator at construction, so it is attached afterwards.
func (t *Terminator) SetConnection(conn Disconnector) {
	t.mu.Lock()
	t.opts.Connection = conn
	t.mu.Unlock()
}

// Terminate signs the session out, closes the connection, expires the
// cookie, leaves the expired flag and navigates to the sign-in page. Every
// step runs even when an earlier one fails. The flag is written only when
// this call ended a live session; navigation is skipped when already on the
// sign-in page.
func (t *Terminator) Terminate(reason Reason) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ended := t.store.SignOut()
	if ended {
		log.Printf("[session] terminating session: %s", reason)
	}

	if conn := t.opts.Connection; conn != nil {
		t.step("close connection", func() error {
			conn.Disconnect()
			return nil
		})
	}

	if cookies := t.opts.Cookies; cookies != nil {
		t.step("expire cookie", cookies.ExpireToken)
	}

	if flags := t.opts.Flags; flags != nil && ended && reason != ReasonSignOut {
		t.step("set expired flag", flags.Set)
	}

	if nav := t.opts.Navigator; nav != nil {
		t.step("navigate", func() error {
			if nav.Current() != SignInPath {
				nav.Navigate(SignInPath)
			}
			return nil
		})
	}
}

// step runs fn, logging an error or a panic instead of propagating it.
func (t *Terminator) step(name string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[session] %s panicked: %v", name, p)
		}
	}()
	if err := fn(); err != nil {
		log.Printf("[session] %s failed: %v", name, err)
	}
}
