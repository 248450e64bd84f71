package autosave

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by a Store when a write does not fit.
var ErrQuotaExceeded = errors.New("autosave: storage quota exceeded")

// Store is the durable key-value slot a Manager writes snapshots into.
// Implementations are expected to return quickly; a failed write must be
// reported as an error, never a panic.
type Store interface {
	// Get returns the stored value for key. ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store. With a positive quota it rejects
// writes that would push the total size of keys and values past it, the
// way browser local storage does.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
	used  int
}

// NewMemoryStore creates a MemoryStore. quota <= 0 means unlimited.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{items: make(map[string]string), quota: quota}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + len(key) + len(value)
	if old, ok := s.items[key]; ok {
		used -= len(key) + len(old)
	}
	if s.quota > 0 && used > s.quota {
		return ErrQuotaExceeded
	}
	s.items[key] = value
	s.used = used
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.items, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
