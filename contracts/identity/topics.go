// Package identity mirrors the logical contract of the on-chain identity
// registry: the ERC-735 style numeric claim topic codes the deployed
// contracts understand. The core treats on-chain references as opaque
// strings; this package is the single place where platform topic ids meet
// contract topic numbers.
package identity

// Claim topic codes as encoded by the deployed identity contracts.
// Numbering follows the ERC-735 convention of small uints per topic.
const (
	TopicKYCApproved           uint64 = 1
	TopicAccreditedInvestor    uint64 = 2
	TopicAuthorizedSPV         uint64 = 3
	TopicGovernanceEligible    uint64 = 4
	TopicInstitutionalInvestor uint64 = 5
)

// topicCodes maps platform topic ids to contract topic codes.
var topicCodes = map[string]uint64{
	"KYC_APPROVED":           TopicKYCApproved,
	"ACCREDITED_INVESTOR":    TopicAccreditedInvestor,
	"AUTHORIZED_SPV":         TopicAuthorizedSPV,
	"GOVERNANCE_ELIGIBLE":    TopicGovernanceEligible,
	"INSTITUTIONAL_INVESTOR": TopicInstitutionalInvestor,
}

// TopicCode returns the on-chain topic code for a platform topic id.
// The second return is false for topics with no on-chain representation;
// such claims are platform-only and never anchored.
func TopicCode(topicID string) (uint64, bool) {
	code, ok := topicCodes[topicID]
	return code, ok
}

// KnownTopics returns every platform topic id with an on-chain code.
func KnownTopics() []string {
	out := make([]string, 0, len(topicCodes))
	for id := range topicCodes {
		out = append(out, id)
	}
	return out
}
