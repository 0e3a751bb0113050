// Package memory provides a non-durable ProfileStore used in tests and as a
// fallback when no data directory is configured.
package memory

import (
	"sync"

	"github.com/fintwitch/sessiond/internal/domain"
)

// Store implements domain.ProfileStore entirely in memory.
type Store struct {
	mu       sync.Mutex
	current  domain.Profile
	watchers []func(domain.Profile)
}

// NewStore creates a store seeded with the defined initial profile.
func NewStore() *Store {
	return &Store{current: domain.NewProfile()}
}

// Read returns the current profile snapshot.
func (s *Store) Read() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Write applies the mutator under the serialized writer and notifies
// watchers with the new snapshot.
func (s *Store) Write(m domain.ProfileMutator) domain.Profile {
	s.mu.Lock()
	next := m(s.current.Clone())
	s.current = next
	snapshot := next.Clone()
	watchers := append([]func(domain.Profile){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
	return snapshot
}

// Watch registers a callback invoked after every Write.
func (s *Store) Watch(fn func(domain.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}
