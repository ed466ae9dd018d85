package claims

import (
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Claim is a single attestation issued against an identity. Claims are
// append-only: status marks logical removal, records are never deleted.
//
// Invariants:
//   - the issuer was authorized for Topic at issuance time; authorization
//     is not re-checked retroactively
//   - ExpiresAt, when present, is strictly after IssuedAt
//   - status transitions are monotonic: active→expired (time-driven),
//     active→revoked (administrative, requires a reason); both terminal
type Claim struct {
	ID      id.ClaimID
	Address id.Address
	Topic   id.TopicID
	Issuer  id.IssuerID
	// Data is the topic-specific attestation payload. The core treats it
	// as opaque; boundary validation against topic schemas happens in the
	// transport layer.
	Data      map[string]any
	IssuedAt  time.Time
	ExpiresAt *time.Time
	Status    id.ClaimStatus
	// VerificationHash links the claim to its on-chain counterpart.
	// Opaque to the core; derived if the issuer does not supply one.
	VerificationHash string
	// RevocationReason is set exactly once, when the claim is revoked.
	RevocationReason string
	UpdatedAt        time.Time
}

// ExpiredAt reports whether the claim's expiry has passed at t, regardless
// of whether the status transition has been materialized.
func (c *Claim) ExpiredAt(t time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(t)
}

// ActiveAt reports whether the claim is usable for verification at t.
func (c *Claim) ActiveAt(t time.Time) bool {
	return c.Status == id.ClaimStatusActive && !c.ExpiredAt(t)
}

// CanRevoke checks the revocation transition. Expiry wins over revocation:
// a claim past its expiry is already terminal even if the transition has
// not been materialized yet.
func (c *Claim) CanRevoke(reason string, now time.Time) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}
	if c.Status == id.ClaimStatusRevoked {
		return dErrors.New(dErrors.CodeInvalidState, "claim is already revoked")
	}
	if c.Status == id.ClaimStatusExpired || c.ExpiredAt(now) {
		return dErrors.New(dErrors.CodeInvalidState, "claim is expired")
	}
	return nil
}

// ApplyRevoke transitions the claim. Call CanRevoke first.
func (c *Claim) ApplyRevoke(reason string, now time.Time) {
	c.Status = id.ClaimStatusRevoked
	c.RevocationReason = reason
	c.UpdatedAt = now
}

// Patch carries the editable fields of an active claim.
type Patch struct {
	Data      map[string]any
	ExpiresAt *time.Time
}

// CanUpdate checks that the claim accepts edits.
func (c *Claim) CanUpdate(patch Patch, now time.Time) error {
	if c.Status != id.ClaimStatusActive || c.ExpiredAt(now) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot update %s claim", c.effectiveStatus(now))
	}
	if patch.ExpiresAt != nil && !patch.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeValidation, "expiry must be in the future")
	}
	return nil
}

// ApplyUpdate mutates the claim. Call CanUpdate first.
func (c *Claim) ApplyUpdate(patch Patch, now time.Time) {
	if patch.Data != nil {
		c.Data = patch.Data
	}
	if patch.ExpiresAt != nil {
		t := *patch.ExpiresAt
		c.ExpiresAt = &t
	}
	c.UpdatedAt = now
}

func (c *Claim) effectiveStatus(now time.Time) id.ClaimStatus {
	if c.Status == id.ClaimStatusActive && c.ExpiredAt(now) {
		return id.ClaimStatusExpired
	}
	return c.Status
}
