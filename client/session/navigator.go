package session

import "sync"

// SignInPath is where a terminated session lands.
const SignInPath = "/sign-in"

// Navigator moves the client between locations.
type Navigator interface {
	Current() string
	Navigate(path string)
}

// PathNavigator tracks the current location in memory and reports every
// navigation to OnNavigate.
type PathNavigator struct {
	mu         sync.Mutex
	current    string
	OnNavigate func(path string)
}

// NewPathNavigator starts at path.
func NewPathNavigator(path string) *PathNavigator {
	return &PathNavigator{current: path}
}

func (n *PathNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *PathNavigator) Navigate(path string) {
	n.mu.Lock()
	n.current = path
	cb := n.OnNavigate
	n.mu.Unlock()

	if cb != nil {
		cb(path)
	}
}
