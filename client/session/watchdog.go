package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrCredentialRejected is returned by a Validator when the server refused
// the credential itself, as opposed to a transport failure.
var ErrCredentialRejected = errors.New("credential rejected")

// Validator asks the server whether a credential is still good.
type Validator interface {
	Validate(ctx context.Context, credential string) error
}

// DefaultCheckInterval is how often Run re-checks the credential.
const DefaultCheckInterval = time.Minute

// WatchdogOptions configures a Watchdog.
type WatchdogOptions struct {
	Clock    clock.Clock
	Interval time.Duration
	// Remote is optional. Only ErrCredentialRejected ends the session;
	// other errors are transient and ignored.
	Remote Validator
}

// Watchdog checks the session credential on load, on resume and on a fixed
// interval, and terminates the session when it has expired.
type Watchdog struct {
	store    *Store
	term     *Terminator
	clock    clock.Clock
	interval time.Duration
	remote   Validator
}

// NewWatchdog builds a Watchdog.
func NewWatchdog(store *Store, term *Terminator, opts WatchdogOptions) *Watchdog {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultCheckInterval
	}
	return &Watchdog{
		store:    store,
		term:     term,
		clock:    opts.Clock,
		interval: opts.Interval,
		remote:   opts.Remote,
	}
}

// CheckNow runs one check and reports whether the session is still live.
func (w *Watchdog) CheckNow(ctx context.Context) bool {
	st := w.store.Snapshot()
	if !st.Active {
		return false
	}

	if IsTokenExpired(st.Credential, w.clock.Now()) {
		w.term.Terminate(ReasonExpired)
		return false
	}

	if w.remote == nil {
		return true
	}

	err := w.remote.Validate(ctx, st.Credential)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrCredentialRejected):
		// A sign-in that happened while the request was in flight is not
		// the session that was rejected.
		if w.store.Generation() != st.Generation {
			return w.store.Active()
		}
		w.term.Terminate(ReasonRejected)
		return false
	default:
		log.Printf("[session] remote validation failed, keeping session: %v", err)
		return true
	}
}

// Run checks every interval until ctx is done. It also wakes exactly at the
// credential's expiry when that comes sooner.
func (w *Watchdog) Run(ctx context.Context) {
	for {
		timer := w.clock.Timer(w.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.CheckNow(ctx)
		}
	}
}

func (w *Watchdog) nextWait() time.Duration {
	wait := w.interval
	if exp, ok := ExpiresAt(w.store.Credential()); ok {
		if until := exp.Sub(w.clock.Now()); until < wait {
			wait = max(until, 0)
		}
	}
	return wait
}
