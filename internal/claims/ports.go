package claims

import (
	"context"
	"time"

	"attesta/internal/identity"
	"attesta/internal/topics"
	id "attesta/pkg/domain"
)

// IssuerDirectory is the slice of the trusted issuer directory the ledger
// consumes: the authorization gate plus issuance statistics.
type IssuerDirectory interface {
	IsAuthorized(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (bool, error)
	RecordIssuance(ctx context.Context, issuerID id.IssuerID) error
	RecordIssuanceReverted(ctx context.Context, issuerID id.IssuerID) error
	RecordClaimClosed(ctx context.Context, issuerID id.IssuerID) error
}

// TopicCatalog resolves topic policy at issuance time.
type TopicCatalog interface {
	GetTopic(ctx context.Context, topicID id.TopicID) (*topics.Definition, error)
	ListRequiredTopics(ctx context.Context) ([]*topics.Definition, error)
}

// IdentityProjection is the slice of the identity registry the ledger
// drives: existence checks plus claim-reference propagation. Every claim
// mutation flows through these so the projection stays consistent.
type IdentityProjection interface {
	GetIdentity(ctx context.Context, address id.Address) (*identity.Record, error)
	AppendClaimRef(ctx context.Context, address id.Address, ref identity.ClaimReference, requiredTopic bool) (*identity.Record, error)
	RemoveClaimRef(ctx context.Context, address id.Address, claimID id.ClaimID) error
	SyncClaimRef(ctx context.Context, address id.Address, claimID id.ClaimID, status id.ClaimStatus, expiresAt *time.Time) error
	ReevaluateAfterRevocation(ctx context.Context, address id.Address, requiredTopics []id.TopicID) (*identity.Record, error)
}
