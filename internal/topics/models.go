package topics

import (
	"time"

	contract "attesta/contracts/identity"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Category groups topics by compliance purpose.
type Category string

const (
	CategoryKYC           Category = "kyc"
	CategoryAccreditation Category = "accreditation"
	CategoryGovernance    Category = "governance"
	CategoryCompliance    Category = "compliance"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryKYC, CategoryAccreditation, CategoryGovernance, CategoryCompliance:
		return true
	}
	return false
}

// Definition is the platform-wide policy for one claim topic.
//
// Invariants:
//   - ID is stable and globally unique; topics are never deleted because
//     historical claims reference them permanently
//   - DefaultExpiryDays == 0 means claims of this topic do not expire by default
//   - Required topics form the baseline compliance set for verification
type Definition struct {
	ID          id.TopicID
	Name        string
	Description string
	// Required marks topics every identity must hold for baseline
	// participation.
	Required bool
	Category Category
	// DefaultExpiryDays is applied at issuance when the issuer does not
	// supply an explicit expiry. Zero means non-expiring.
	DefaultExpiryDays int
	// Renewable topics allow a fresh claim to be issued after expiry.
	// Expiry never mutates an existing claim back to active.
	Renewable bool
	// ChainCode is the ERC-735 style numeric code the on-chain registry
	// uses for this topic. Zero for platform-only topics.
	ChainCode uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDefinition validates and constructs a topic definition.
func NewDefinition(topicID id.TopicID, name string, category Category, now time.Time) (*Definition, error) {
	if topicID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "topic id is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "topic name is required")
	}
	if !category.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid topic category: %s", category)
	}
	def := &Definition{
		ID:        topicID,
		Name:      name,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if code, ok := contract.TopicCode(topicID.String()); ok {
		def.ChainCode = code
	}
	return def, nil
}

// Patch carries the administratively editable fields of a definition.
// Nil pointers leave the field untouched. Expiry policy changes never
// retroactively affect already-issued claims.
type Patch struct {
	Name              *string
	Description       *string
	Required          *bool
	DefaultExpiryDays *int
	Renewable         *bool
}

// Apply mutates the definition in place.
func (p Patch) Apply(def *Definition, now time.Time) error {
	if p.Name != nil {
		if *p.Name == "" {
			return dErrors.New(dErrors.CodeValidation, "topic name cannot be empty")
		}
		def.Name = *p.Name
	}
	if p.Description != nil {
		def.Description = *p.Description
	}
	if p.Required != nil {
		def.Required = *p.Required
	}
	if p.DefaultExpiryDays != nil {
		if *p.DefaultExpiryDays < 0 {
			return dErrors.New(dErrors.CodeValidation, "default expiry days cannot be negative")
		}
		def.DefaultExpiryDays = *p.DefaultExpiryDays
	}
	if p.Renewable != nil {
		def.Renewable = *p.Renewable
	}
	def.UpdatedAt = now
	return nil
}

// Defaults returns the built-in topic catalog the platform ships with.
// KYC approval is the baseline requirement; the rest gate specific
// participation tiers.
func Defaults(now time.Time) []*Definition {
	mk := func(topicID, name string, category Category, required bool, expiryDays int, renewable bool) *Definition {
		def, err := NewDefinition(id.TopicID(topicID), name, category, now)
		if err != nil {
			panic(err) // built-in catalog is static; failure is a programming error
		}
		def.Required = required
		def.DefaultExpiryDays = expiryDays
		def.Renewable = renewable
		return def
	}
	return []*Definition{
		mk("KYC_APPROVED", "KYC approved", CategoryKYC, true, 365, true),
		mk("ACCREDITED_INVESTOR", "Accredited investor", CategoryAccreditation, false, 365, true),
		mk("AUTHORIZED_SPV", "Authorized SPV", CategoryCompliance, false, 0, false),
		mk("GOVERNANCE_ELIGIBLE", "Governance eligible", CategoryGovernance, false, 0, false),
		mk("INSTITUTIONAL_INVESTOR", "Institutional investor", CategoryAccreditation, false, 730, true),
	}
}
