package session

import (
	"sync"

	"github.com/glimsocial/glim/models"
)

// State is an immutable view of the store.
type State struct {
	Credential string
	User       *models.User
	Active     bool
	// Generation changes on every SignIn and effective SignOut. Work started
	// under one generation must not apply its result under another.
	Generation uint64
}

// Store is the single owner of session state. All changes go through SignIn
// and SignOut; readers see either a signed-in or a signed-out state, never a
// partial one.
type Store struct {
	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore returns a signed-out store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// SignIn replaces the session wholesale.
func (s *Store) SignIn(credential string, user *models.User) {
	s.mu.Lock()
	s.state = State{
		Credential: credential,
		User:       user,
		Active:     true,
		Generation: s.state.Generation + 1,
	}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
}

// SignOut clears the session. It reports whether a session was actually
// active; a second call is a no-op returning false.
func (s *Store) SignOut() bool {
	s.mu.Lock()
	if !s.state.Active {
		s.mu.Unlock()
		return false
	}
	s.state = State{Generation: s.state.Generation + 1}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return true
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Credential() string { return s.Snapshot().Credential }

func (s *Store) User() *models.User { return s.Snapshot().User }

func (s *Store) Active() bool { return s.Snapshot().Active }

func (s *Store) Generation() uint64 { return s.Snapshot().Generation }

// Subscribe calls fn after every state change until the returned func is
// called. fn runs on the goroutine that changed the state.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
