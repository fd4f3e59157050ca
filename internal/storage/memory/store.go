package memory

import (
	"context"
	"sync"

	"github.com/procureflow/assistant/internal/storage"
)

// Store is an in-memory implementation of storage.KV
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// Ensure Store implements KV
var _ storage.KV = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return "", storage.ErrNotFound
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
