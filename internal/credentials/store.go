// Package credentials persists the node identity and the long-lived
// mining token.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoadIdentity reads the one-line node identity file. The identity is
// immutable for the process lifetime; a missing or empty file is a fatal
// startup configuration error for the caller.
func LoadIdentity(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read node identity file %s: %w", path, err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("node identity file %s is empty", path)
	}
	return id, nil
}

// Store holds the mining token in memory and mirrors it to a plain-text
// file. The sync loop is the only writer; the task poller only reads.
// Absence of a token is a valid state meaning "not yet synchronized".
type Store struct {
	path string

	mu      sync.RWMutex
	token   string
	present bool
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted token, if any, into memory. A missing file is
// not an error.
func (s *Store) Load() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read token file %s: %w", s.path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}
	s.mu.Lock()
	s.token = token
	s.present = true
	s.mu.Unlock()
	return token, true, nil
}

// Token returns the in-memory token. Safe for concurrent readers.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.present
}

// Save publishes a rotated token: write to a temp file, then rename, so
// a concurrent reader never observes a partial write. On write failure
// the previous in-memory token stays live until the next rotation.
func (s *Store) Save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create token directory %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("publish token file: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.present = true
	s.mu.Unlock()
	return nil
}
