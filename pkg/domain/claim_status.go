package domain

// ClaimStatus is shared between the claim ledger (authoritative records)
// and the identity registry (denormalized claim references), so the
// projection can mirror ledger state without importing it.
//
// Transitions are monotonic: active→expired (time-driven) and
// active→revoked (administrative). Both end states are terminal; a
// renewable topic gets a brand new claim instead of resurrecting an
// expired one.
type ClaimStatus string

const (
	ClaimStatusActive  ClaimStatus = "active"
	ClaimStatusRevoked ClaimStatus = "revoked"
	ClaimStatusExpired ClaimStatus = "expired"
)

func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusActive, ClaimStatusRevoked, ClaimStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusRevoked || s == ClaimStatusExpired
}
