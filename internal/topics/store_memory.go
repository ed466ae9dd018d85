package topics

import (
	"context"
	"sort"
	"sync"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps topic definitions in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	topics map[id.TopicID]*Definition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{topics: make(map[id.TopicID]*Definition)}
}

func (s *InMemoryStore) Create(_ context.Context, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.topics[def.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *def
	s.topics[def.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, topicID id.TopicID) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.topics[topicID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *def
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(func(*Definition) bool { return true }), nil
}

func (s *InMemoryStore) ListRequired(_ context.Context) ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(func(d *Definition) bool { return d.Required }), nil
}

func (s *InMemoryStore) Execute(_ context.Context, topicID id.TopicID, validate func(*Definition) error, mutate func(*Definition)) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.topics[topicID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(def); err != nil {
		return nil, err
	}
	mutate(def)
	cp := *def
	return &cp, nil
}

// snapshot copies matching definitions sorted by id. Caller holds the lock.
func (s *InMemoryStore) snapshot(match func(*Definition) bool) []*Definition {
	out := make([]*Definition, 0, len(s.topics))
	for _, def := range s.topics {
		if match(def) {
			cp := *def
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
