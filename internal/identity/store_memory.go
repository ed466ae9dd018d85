package identity

import (
	"context"
	"sort"
	"sync"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps identity records in a map guarded by a RWMutex. The
// single store-wide mutex also provides the per-identity serialization
// Execute requires.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.Address]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.Address]*Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Address]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.Address] = cloneRecord(record)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, address id.Address) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, address id.Address, validate func(*Record) error, mutate func(*Record)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)
	return cloneRecord(rec), nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int)
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func cloneRecord(r *Record) *Record {
	cp := *r
	cp.Claims = append([]ClaimReference{}, r.Claims...)
	cp.TrustedIssuers = append([]id.IssuerID{}, r.TrustedIssuers...)
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}
