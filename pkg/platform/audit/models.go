// Package audit defines the append-only identity audit trail. Events are
// emitted from domain services, persisted through a Store, and relayed to
// Kafka for downstream compliance consumers. Records are write-once; there
// is no update or delete path anywhere in this package.
package audit

import (
	"context"
	"time"

	id "attesta/pkg/domain"
)

// Category classifies audit events by their primary purpose. Compliance
// events require tamper-proof storage and long retention; operations events
// can be sampled with shorter retention.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

// Operation names every auditable action in the identity/claims core.
type Operation string

const (
	OpIdentityRegister Operation = "register"
	OpIdentityVerify   Operation = "verify"
	OpIdentityRevoke   Operation = "revoke"
	OpStatusUpdate     Operation = "status_update"
	OpClaimIssue       Operation = "claim_issue"
	OpClaimRevoke      Operation = "claim_revoke"
	OpClaimUpdate      Operation = "claim_update"
	OpClaimExpire      Operation = "claim_expire"
	OpIssuerRegister   Operation = "issuer_register"
	OpIssuerStatus     Operation = "issuer_status"
	OpIssuerAuthorize  Operation = "issuer_authorize"
	OpTopicDefine      Operation = "topic_define"
	OpTopicUpdate      Operation = "topic_update"
)

// operationCategories is the source of truth for event routing.
var operationCategories = map[Operation]Category{
	OpIdentityRegister: CategoryCompliance,
	OpIdentityVerify:   CategoryOperations,
	OpIdentityRevoke:   CategoryCompliance,
	OpStatusUpdate:     CategoryCompliance,
	OpClaimIssue:       CategoryCompliance,
	OpClaimRevoke:      CategoryCompliance,
	OpClaimUpdate:      CategoryCompliance,
	OpClaimExpire:      CategoryOperations,
	OpIssuerRegister:   CategoryCompliance,
	OpIssuerStatus:     CategoryCompliance,
	OpIssuerAuthorize:  CategoryCompliance,
	OpTopicDefine:      CategoryOperations,
	OpTopicUpdate:      CategoryOperations,
}

// Category returns the routing category for an operation. Unknown
// operations are treated as compliance so nothing is silently sampled away.
func (o Operation) Category() Category {
	if c, ok := operationCategories[o]; ok {
		return c
	}
	return CategoryCompliance
}

// Event is a single immutable audit record. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	Operation Operation
	Timestamp time.Time
	Address   id.Address
	ClaimID   id.ClaimID
	Topic     id.TopicID
	Issuer    id.IssuerID
	// Operator is the administrator or service account that performed the
	// action. Empty for system-triggered transitions such as lazy expiry.
	Operator string
	Reason   string
	// Changes captures before/after values for mutations, keyed by field.
	Changes map[string]string
	// Request metadata, populated by the HTTP middleware when present.
	RequestID string
	ClientIP  string
	UserAgent string
}

// Store persists audit events. Append is write-once; implementations must
// never expose mutation of stored events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAddress(ctx context.Context, address id.Address) ([]Event, error)
	// CountByOperation aggregates event counts for compliance reporting.
	CountByOperation(ctx context.Context) (map[Operation]int, error)
}

// Publisher is the emit side consumed by domain services.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
