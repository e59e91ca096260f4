// Package storage persists the client session between process restarts.
//
// A Store holds a small set of string keys. Save replaces the whole set, so a
// reader never observes keys from two different writes. Stores do not know
// what the keys mean; the session package owns them.
package storage

import (
	"context"
	"maps"
	"sync"
)

// Store is the session persistence contract.
type Store interface {
	// Load returns every persisted key. An empty store returns an empty map.
	Load(ctx context.Context) (map[string]string, error)
	// Save atomically replaces all persisted keys with values.
	Save(ctx context.Context, values map[string]string) error
	// Clear removes every persisted key.
	Clear(ctx context.Context) error
}

// MemoryStore is a process-local Store, used in tests and when persistence
// is not wanted.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Load implements Store.
func (s *MemoryStore) Load(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = maps.Clone(values)
	if s.values == nil {
		s.values = map[string]string{}
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
	return nil
}
