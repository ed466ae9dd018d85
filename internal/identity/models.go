package identity

import (
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Status is the lifecycle state of an identity record.
//
// Transitions: pending→verified (auto-promotion or admin override),
// verified→pending (revocation-triggered re-evaluation or admin override),
// any→revoked (terminal). The record itself is never deleted.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRevoked  Status = "revoked"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is legal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	if s == StatusRevoked {
		return false // terminal
	}
	return next.IsValid()
}

// ClaimReference is a lightweight pointer into the claim ledger, kept on
// the identity record for fast identity-centric reads. It is a projection:
// the ledger's Claim record is authoritative, and verification re-derives
// from the ledger whenever correctness matters.
type ClaimReference struct {
	ClaimID   id.ClaimID
	Topic     id.TopicID
	IssuedAt  time.Time
	ExpiresAt *time.Time
	Status    id.ClaimStatus
}

// ActiveAt reports whether the reference is active and unexpired at t.
func (r ClaimReference) ActiveAt(t time.Time) bool {
	if r.Status != id.ClaimStatusActive {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// Record is the per-user identity entry, keyed by wallet address.
//
// Invariant: Status == verified implies at least one active unexpired claim
// of a required topic exists. The status is derived by the verification
// engine; administrative overrides are allowed but always audited with a
// reason.
type Record struct {
	Address id.Address
	UserID  id.UserID
	// IdentityKey is the opaque on-chain identity reference. The core
	// never validates on-chain state; reconciliation is an external job.
	IdentityKey string
	Status      Status
	// Claims is the ordered reference list, maintained in issuance order.
	Claims []ClaimReference
	// TrustedIssuers optionally restricts which issuers this identity
	// accepts claims from. Empty means the global directory applies.
	TrustedIssuers []id.IssuerID
	CreatedAt      time.Time
	// VerifiedAt is set once, the first time status becomes verified.
	VerifiedAt  *time.Time
	LastUpdated time.Time
}

// NewRecord validates and constructs a pending identity record.
func NewRecord(address id.Address, userID id.UserID, identityKey string, now time.Time) (*Record, error) {
	if address.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	return &Record{
		Address:     address,
		UserID:      userID,
		IdentityKey: identityKey,
		Status:      StatusPending,
		CreatedAt:   now,
		LastUpdated: now,
	}, nil
}

// AcceptsIssuer reports whether the identity's issuer allowlist permits the
// issuer. An empty allowlist accepts any directory-authorized issuer.
func (r *Record) AcceptsIssuer(issuerID id.IssuerID) bool {
	if len(r.TrustedIssuers) == 0 {
		return true
	}
	for _, allowed := range r.TrustedIssuers {
		if allowed == issuerID {
			return true
		}
	}
	return false
}

// HasActiveClaim reports whether any reference for the topic is active and
// unexpired at t.
func (r *Record) HasActiveClaim(topic id.TopicID, t time.Time) bool {
	for _, ref := range r.Claims {
		if ref.Topic == topic && ref.ActiveAt(t) {
			return true
		}
	}
	return false
}

// CanSetStatus checks an explicit status transition.
func (r *Record) CanSetStatus(next Status) error {
	if !next.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid identity status: %s", next)
	}
	if !r.Status.CanTransitionTo(next) {
		if r.Status == StatusRevoked {
			return dErrors.New(dErrors.CodeInvalidState, "identity is revoked; revocation is terminal")
		}
		return dErrors.Newf(dErrors.CodeInvalidState, "identity is already %s", r.Status)
	}
	return nil
}

// ApplySetStatus transitions the record, setting VerifiedAt exactly once.
func (r *Record) ApplySetStatus(next Status, now time.Time) {
	r.Status = next
	if next == StatusVerified && r.VerifiedAt == nil {
		t := now
		r.VerifiedAt = &t
	}
	r.LastUpdated = now
}
