package issuers

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists trusted issuer records.
type Store interface {
	Create(ctx context.Context, issuer *TrustedIssuer) error
	Get(ctx context.Context, issuerID id.IssuerID) (*TrustedIssuer, error)
	List(ctx context.Context) ([]*TrustedIssuer, error)
	// Execute applies validate-then-mutate while holding the per-record
	// lock, so counter updates and status checks cannot interleave.
	Execute(ctx context.Context, issuerID id.IssuerID, validate func(*TrustedIssuer) error, mutate func(*TrustedIssuer)) (*TrustedIssuer, error)
}
