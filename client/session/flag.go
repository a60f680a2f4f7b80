package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FlagStore persists the one-shot "session expired" flag the sign-in view
// shows once.
type FlagStore interface {
	Set() error
	// Consume reports whether the flag was set and clears it.
	Consume() (bool, error)
}

// FileFlagStore keeps the flag as the presence of a file.
type FileFlagStore struct {
	path string
}

// NewFileFlagStore stores the flag at path.
func NewFileFlagStore(path string) *FileFlagStore {
	return &FileFlagStore{path: path}
}

func (f *FileFlagStore) Set() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create flag dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte("1"), 0o600); err != nil {
		return fmt.Errorf("write session flag: %w", err)
	}
	return nil
}

func (f *FileFlagStore) Consume() (bool, error) {
	err := os.Remove(f.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("clear session flag: %w", err)
	}
}

// MemoryFlagStore is a process-local FlagStore.
type MemoryFlagStore struct {
	mu  sync.Mutex
	set bool
}

func (m *MemoryFlagStore) Set() error {
	m.mu.Lock()
	m.set = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryFlagStore) Consume() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.set
	m.set = false
	return was, nil
}
