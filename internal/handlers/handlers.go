// Package handlers holds the callback sets form accessors keep for change,
// submit and unload notifications.
package handlers

import "sync"

// Set is an ordered set of callbacks. The zero value is ready to use.
type Set[F any] struct {
	mu   sync.Mutex
	next int
	m    map[int]F
}

// Add registers fn and returns a function that removes it. Removing twice
// is a no-op.
func (s *Set[F]) Add(fn F) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[int]F)
	}
	id := s.next
	s.next++
	s.m[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the registered callbacks in registration order. Callers
// run them without any lock held, so a callback may add or remove others.
func (s *Set[F]) Snapshot() []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]F, 0, len(s.m))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.m[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// Len reports how many callbacks are registered.
func (s *Set[F]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
