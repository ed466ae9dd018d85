package identity

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists identity records.
//
// Execute is the per-identity serialization point: implementations hold the
// record's lock (a mutex, or SELECT ... FOR UPDATE) across validate and
// mutate, so concurrent claim mutations against the same identity cannot
// race on the claim reference list.
type Store interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, address id.Address) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Execute(ctx context.Context, address id.Address, validate func(*Record) error, mutate func(*Record)) (*Record, error)
	// CountByStatus aggregates for compliance reporting.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
