package claims

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists claim records. The ledger is the source of truth for
// claim state; the identity registry's reference list is a projection.
type Store interface {
	Create(ctx context.Context, claim *Claim) error
	Get(ctx context.Context, claimID id.ClaimID) (*Claim, error)
	// ListByAddress returns the identity's claims in issuance order.
	ListByAddress(ctx context.Context, address id.Address) ([]*Claim, error)
	// Execute applies validate-then-mutate under the claim's lock.
	Execute(ctx context.Context, claimID id.ClaimID, validate func(*Claim) error, mutate func(*Claim)) (*Claim, error)
	// Delete removes a record outright. Claims are immutable history once
	// issued; this exists solely so a failed issuance can be unwound.
	Delete(ctx context.Context, claimID id.ClaimID) error
	// CountByStatus aggregates for compliance reporting.
	CountByStatus(ctx context.Context) (map[id.ClaimStatus]int, error)
}
