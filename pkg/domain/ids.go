// Package domain holds the typed identifiers shared across the identity
// and claims components. Typed IDs prevent cross-type assignment at compile
// time and centralize parsing rules at trust boundaries.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "attesta/pkg/domain-errors"
)

// Address is a wallet address and the primary key of an identity record.
// Stored lowercase so lookups are case-insensitive.
type Address string

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates and normalizes a wallet address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if !addressPattern.MatchString(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid address format: %s", s)
	}
	return Address(strings.ToLower(s)), nil
}

func (a Address) String() string { return string(a) }

// IsNil returns true for the zero address value.
func (a Address) IsNil() bool { return a == "" }

// ClaimID identifies a single claim record.
type ClaimID uuid.UUID

// NewClaimID returns a fresh random claim id.
func NewClaimID() ClaimID { return ClaimID(uuid.New()) }

// ParseClaimID validates a claim id string. Nil UUIDs are rejected so a
// zero value can never masquerade as a real record.
func ParseClaimID(s string) (ClaimID, error) {
	if s == "" {
		return ClaimID{}, dErrors.New(dErrors.CodeValidation, "claim id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ClaimID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid claim id")
	}
	if u == uuid.Nil {
		return ClaimID{}, dErrors.New(dErrors.CodeValidation, "claim id cannot be nil")
	}
	return ClaimID(u), nil
}

func (c ClaimID) String() string { return uuid.UUID(c).String() }

// MarshalText implements encoding.TextMarshaler so claim ids serialize as
// canonical UUID strings.
func (c ClaimID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClaimID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid claim id")
	}
	*c = ClaimID(u)
	return nil
}

// IsNil returns true for the zero claim id.
func (c ClaimID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

// IssuerID identifies a trusted issuer. Issuer ids are external identifiers
// (a provider slug or an address), so validation is limited to shape.
type IssuerID string

// ParseIssuerID validates an issuer identifier.
func ParseIssuerID(s string) (IssuerID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "issuer id is required")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeValidation, "issuer id must be 128 characters or less")
	}
	return IssuerID(s), nil
}

func (i IssuerID) String() string { return string(i) }

// IsNil returns true for the zero issuer id.
func (i IssuerID) IsNil() bool { return i == "" }

// TopicID identifies a claim topic, e.g. KYC_APPROVED. Upper snake case by
// convention; topic ids are stable and referenced permanently by claims.
type TopicID string

var topicPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// ParseTopicID validates a claim topic identifier.
func ParseTopicID(s string) (TopicID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "topic id is required")
	}
	if !topicPattern.MatchString(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid topic id: %s", s)
	}
	return TopicID(s), nil
}

func (t TopicID) String() string { return string(t) }

// IsNil returns true for the zero topic id.
func (t TopicID) IsNil() bool { return t == "" }

// UserID links an identity to a platform user account. Account ids are
// minted elsewhere, so the core only requires them to be non-empty.
type UserID string

func (u UserID) String() string { return string(u) }

// IsNil returns true for the zero user id.
func (u UserID) IsNil() bool { return u == "" }
