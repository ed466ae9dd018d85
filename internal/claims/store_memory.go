package claims

import (
	"context"
	"maps"
	"sort"
	"sync"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps claims in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*Claim
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{claims: make(map[id.ClaimID]*Claim)}
}

func (s *InMemoryStore) Create(_ context.Context, claim *Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrConflict
	}
	s.claims[claim.ID] = cloneClaim(claim)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, claimID id.ClaimID) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneClaim(c), nil
}

func (s *InMemoryStore) ListByAddress(_ context.Context, address id.Address) ([]*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Claim
	for _, c := range s.claims {
		if c.Address == address {
			out = append(out, cloneClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, claimID id.ClaimID, validate func(*Claim) error, mutate func(*Claim)) (*Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)
	return cloneClaim(c), nil
}

func (s *InMemoryStore) Delete(_ context.Context, claimID id.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claimID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[id.ClaimStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.ClaimStatus]int)
	for _, c := range s.claims {
		counts[c.Status]++
	}
	return counts, nil
}

func cloneClaim(c *Claim) *Claim {
	cp := *c
	cp.Data = maps.Clone(c.Data)
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
