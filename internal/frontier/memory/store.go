// Package memory provides an in-process set store for tests and single-node runs.
package memory

import (
	"context"
	"errors"
	"sync"
)

var errClosed = errors.New("memory store closed")

// Store is a mutex-guarded collection of string sets.
type Store struct {
	mu     sync.Mutex
	sets   map[string]map[string]struct{}
	closed bool
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{sets: make(map[string]map[string]struct{})}
}

// Add inserts member into the set at key.
func (s *Store) Add(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed
	}
	return s.addLocked(key, member), nil
}

// PopRandom removes an arbitrary member of the set at key.
func (s *Store) PopRandom(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, errClosed
	}
	for member := range s.sets[key] {
		delete(s.sets[key], member)
		return member, true, nil
	}
	return "", false, nil
}

// IsMember reports whether member is in the set at key.
func (s *Store) IsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed
	}
	_, ok := s.sets[key][member]
	return ok, nil
}

// Count returns the cardinality of the set at key.
func (s *Store) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	return int64(len(s.sets[key])), nil
}

// AddIfAbsent inserts member into target unless it is present in target or any of others.
func (s *Store) AddIfAbsent(_ context.Context, target string, others []string, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed
	}
	for _, key := range others {
		if _, ok := s.sets[key][member]; ok {
			return false, nil
		}
	}
	return s.addLocked(target, member), nil
}

// Members returns a copy of the set at key.
func (s *Store) Members(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sets[key]))
	for member := range s.sets[key] {
		out = append(out, member)
	}
	return out
}

// Ping fails once the store is closed.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed; later calls fail. Closing twice is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) addLocked(key, member string) bool {
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false
	}
	set[member] = struct{}{}
	return true
}
