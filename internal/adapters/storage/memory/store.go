// Package memory provides in-process implementations of the storage ports.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

var _ ports.KeyValueStore = (*Store)(nil)

// Store is a map-backed ports.KeyValueStore. Values are copied in and out.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte

	// failWrites makes every Set return a StorageError. Used to simulate a full disk.
	failWrites error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, domain.NewNotFoundError("key", key)
	}

	return slices.Clone(value), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return domain.NewStorageError("write", key, s.failWrites)
	}

	s.values[key] = slices.Clone(value)

	return nil
}

// FailWrites makes subsequent writes fail with err. A nil err restores writes.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failWrites = err
}
