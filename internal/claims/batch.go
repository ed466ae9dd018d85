package claims

import (
	"context"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// BatchOpKind selects the operation applied by a batch item.
type BatchOpKind string

const (
	BatchOpUpdate BatchOpKind = "update"
	BatchOpRevoke BatchOpKind = "revoke"
)

// BatchOp is one item in a BatchUpdate call.
type BatchOp struct {
	Kind    BatchOpKind
	ClaimID id.ClaimID
	// Patch applies to update ops.
	Patch Patch
	// Reason applies to revoke ops.
	Reason string
}

// BatchOpResult reports one item's outcome.
type BatchOpResult struct {
	ClaimID id.ClaimID
	Claim   *Claim
	Err     error
}

// Succeeded reports whether the item applied.
func (r BatchOpResult) Succeeded() bool { return r.Err == nil }

// BatchUpdate applies update/revoke operations with per-item isolation:
// each item either applies atomically or is reported failed, and a failed
// item never rolls back its siblings. Items run sequentially because bulk
// administrative edits frequently target claims of the same identity.
func (l *Ledger) BatchUpdate(ctx context.Context, ops []BatchOp) []BatchOpResult {
	results := make([]BatchOpResult, len(ops))
	for i, op := range ops {
		results[i] = BatchOpResult{ClaimID: op.ClaimID}
		switch op.Kind {
		case BatchOpUpdate:
			results[i].Claim, results[i].Err = l.UpdateClaim(ctx, op.ClaimID, op.Patch)
		case BatchOpRevoke:
			results[i].Claim, results[i].Err = l.RevokeClaim(ctx, op.ClaimID, op.Reason)
		default:
			results[i].Err = dErrors.Newf(dErrors.CodeValidation, "unknown batch operation: %s", op.Kind)
		}
	}
	return results
}
