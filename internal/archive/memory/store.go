// Package memory keeps archived snapshots in-process, for tests and
// development.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Store holds snapshots in a map keyed by object path.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory archive.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put records the snapshot and returns a memory:// pseudo URI.
func (s *Store) Put(_ context.Context, objectPath string, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}

	s.mu.Lock()
	s.data[objectPath] = append([]byte(nil), b...)
	s.mu.Unlock()

	return fmt.Sprintf("memory://%s", objectPath), nil
}

// Get returns a stored snapshot, for assertions in tests.
func (s *Store) Get(objectPath string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[objectPath]
	return b, ok
}

// Len reports how many snapshots the archive holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
