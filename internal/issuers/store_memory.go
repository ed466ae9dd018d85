package issuers

import (
	"context"
	"maps"
	"sort"
	"sync"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps issuer records in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	issuers map[id.IssuerID]*TrustedIssuer
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{issuers: make(map[id.IssuerID]*TrustedIssuer)}
}

func (s *InMemoryStore) Create(_ context.Context, issuer *TrustedIssuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issuers[issuer.ID]; exists {
		return sentinel.ErrConflict
	}
	s.issuers[issuer.ID] = clone(issuer)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, issuerID id.IssuerID) (*TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iss, ok := s.issuers[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(iss), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*TrustedIssuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TrustedIssuer, 0, len(s.issuers))
	for _, iss := range s.issuers {
		out = append(out, clone(iss))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, issuerID id.IssuerID, validate func(*TrustedIssuer) error, mutate func(*TrustedIssuer)) (*TrustedIssuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iss, ok := s.issuers[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(iss); err != nil {
		return nil, err
	}
	mutate(iss)
	return clone(iss), nil
}

func clone(i *TrustedIssuer) *TrustedIssuer {
	cp := *i
	cp.AuthorizedClaims = maps.Clone(i.AuthorizedClaims)
	cp.Metadata = maps.Clone(i.Metadata)
	return &cp
}
