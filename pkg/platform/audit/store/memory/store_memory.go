// Package memory provides the in-memory audit store used by unit tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	id "attesta/pkg/domain"
	audit "attesta/pkg/platform/audit"
)

// Store keeps events in append order, guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByAddress(_ context.Context, address id.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Address == address {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) CountByOperation(_ context.Context) (map[audit.Operation]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[audit.Operation]int)
	for _, e := range s.events {
		counts[e.Operation]++
	}
	return counts, nil
}

// All returns a copy of every stored event, oldest first. Test helper.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
