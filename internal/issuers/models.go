package issuers

import (
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Status is the lifecycle state of a trusted issuer.
//
// Transitions: active ↔ suspended (reversible), any → revoked (terminal).
// Suspended and revoked both block new issuance; they differ only in
// reversibility.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusRevoked:
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

// TrustedIssuer is an external attestation authority.
//
// Invariant: the issuer may issue a claim of topic T only while
// Status == active AND T is in AuthorizedClaims. Revoking an issuer does
// not invalidate its outstanding claims; claim status and issuer status are
// tracked independently (a deliberate policy choice, pinned in tests).
type TrustedIssuer struct {
	ID   id.IssuerID
	Name string
	// AuthorizedClaims is the set of topics this issuer may attest to.
	AuthorizedClaims map[id.TopicID]struct{}
	Status           Status
	RegisteredAt     time.Time
	LastActivity     time.Time
	// Metadata holds contact/API details supplied at registration.
	Metadata map[string]string
	// IssuedClaimsCount counts every successful issuance, ever.
	IssuedClaimsCount int
	// ActiveClaimsCount tracks outstanding active claims; decremented when
	// a claim is revoked or observed expired.
	ActiveClaimsCount int
}

// NewTrustedIssuer validates and constructs an issuer record.
func NewTrustedIssuer(issuerID id.IssuerID, name string, authorized []id.TopicID, metadata map[string]string, now time.Time) (*TrustedIssuer, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer id is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name is required")
	}
	iss := &TrustedIssuer{
		ID:               issuerID,
		Name:             name,
		AuthorizedClaims: make(map[id.TopicID]struct{}, len(authorized)),
		Status:           StatusActive,
		RegisteredAt:     now,
		LastActivity:     now,
		Metadata:         metadata,
	}
	for _, t := range authorized {
		if t.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "authorized claim topic cannot be empty")
		}
		iss.AuthorizedClaims[t] = struct{}{}
	}
	return iss, nil
}

// IsAuthorized reports whether the issuer may currently issue the topic.
func (i *TrustedIssuer) IsAuthorized(topic id.TopicID) bool {
	if i.Status != StatusActive {
		return false
	}
	_, ok := i.AuthorizedClaims[topic]
	return ok
}

// CanSetStatus checks the requested transition.
func (i *TrustedIssuer) CanSetStatus(next Status) error {
	if !next.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid issuer status: %s", next)
	}
	if !i.Status.CanTransitionTo(next) {
		if i.Status == StatusRevoked {
			return dErrors.New(dErrors.CodeInvalidState, "issuer is revoked; revocation is terminal")
		}
		return dErrors.Newf(dErrors.CodeInvalidState, "issuer is already %s", i.Status)
	}
	return nil
}

// ApplySetStatus transitions the issuer. Call CanSetStatus first.
func (i *TrustedIssuer) ApplySetStatus(next Status, now time.Time) {
	i.Status = next
	i.LastActivity = now
}

// Topics returns the authorized topics as a slice, for serialization.
func (i *TrustedIssuer) Topics() []id.TopicID {
	out := make([]id.TopicID, 0, len(i.AuthorizedClaims))
	for t := range i.AuthorizedClaims {
		out = append(out, t)
	}
	return out
}
