package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Registry owns per-user identity records and the claim reference
// projection. Claim mutations reach it through the claim ledger, which
// calls the projection methods inside this registry's per-identity
// critical section.
type Registry struct {
	store Store

	logger         *slog.Logger
	auditPublisher audit.Publisher
	batchParallel  int
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(r *Registry) { r.auditPublisher = p }
}

// WithBatchParallelism bounds concurrent workers in BatchRegister.
func WithBatchParallelism(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.batchParallel = n
		}
	}
}

func New(store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("identity store is required")
	}
	r := &Registry{store: store, batchParallel: 4}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RegisterIdentity creates a pending identity for a platform user. One
// record per wallet address; registration is deliberately not idempotent.
func (r *Registry) RegisterIdentity(ctx context.Context, address id.Address, userID id.UserID, identityKey string, trustedIssuers []id.IssuerID) (*Record, error) {
	now := requestcontext.Now(ctx)
	record, err := NewRecord(address, userID, identityKey, now)
	if err != nil {
		return nil, err
	}
	record.TrustedIssuers = trustedIssuers

	if err := r.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "identity %s already registered", address)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register identity")
	}

	if err := r.emit(ctx, audit.Event{
		Operation: audit.OpIdentityRegister,
		Timestamp: now,
		Address:   address,
		Operator:  requestcontext.Operator(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// GetIdentity returns the record for a wallet address.
func (r *Registry) GetIdentity(ctx context.Context, address id.Address) (*Record, error) {
	record, err := r.store.Get(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", address)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get identity")
	}
	return record, nil
}

// ListIdentities returns every record, for reporting.
func (r *Registry) ListIdentities(ctx context.Context) ([]*Record, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identities")
	}
	return records, nil
}

// CountByStatus aggregates record counts for compliance reporting.
func (r *Registry) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count identities")
	}
	return counts, nil
}

// UpdateStatus is the administrative status override. The reason is
// recorded in the audit trail; first promotion to verified sets VerifiedAt.
func (r *Registry) UpdateStatus(ctx context.Context, address id.Address, next Status, reason string) (*Record, error) {
	now := requestcontext.Now(ctx)
	var prev Status
	record, err := r.store.Execute(ctx, address,
		func(rec *Record) error {
			prev = rec.Status
			return rec.CanSetStatus(next)
		},
		func(rec *Record) {
			rec.ApplySetStatus(next, now)
		},
	)
	if err != nil {
		return nil, wrapIdentityErr(err, address)
	}

	if err := r.emit(ctx, audit.Event{
		Operation: audit.OpStatusUpdate,
		Timestamp: now,
		Address:   address,
		Operator:  requestcontext.Operator(ctx),
		Reason:    reason,
		Changes:   map[string]string{"from": string(prev), "to": string(next)},
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return nil, err
	}
	return record, nil
}

// RegisterItem is one entry in a BatchRegister call.
type RegisterItem struct {
	Address        id.Address
	UserID         id.UserID
	IdentityKey    string
	TrustedIssuers []id.IssuerID
}

// BatchItemResult reports the outcome of one batch item. Items are
// independent: a failed item never rolls back its siblings.
type BatchItemResult struct {
	Address id.Address
	Record  *Record
	Err     error
}

// BatchRegister registers identities in parallel with per-item isolation.
func (r *Registry) BatchRegister(ctx context.Context, items []RegisterItem) []BatchItemResult {
	results := make([]BatchItemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchParallel)
	for i, item := range items {
		g.Go(func() error {
			record, err := r.RegisterIdentity(gctx, item.Address, item.UserID, item.IdentityKey, item.TrustedIssuers)
			results[i] = BatchItemResult{Address: item.Address, Record: record, Err: err}
			return nil // item failures are reported, not propagated
		})
	}
	_ = g.Wait()
	return results
}

// AppendClaimRef adds a reference to the identity's projection inside the
// per-identity critical section. When the new claim covers a required topic
// and the identity is pending, the registry auto-promotes to verified;
// demotion never happens here.
func (r *Registry) AppendClaimRef(ctx context.Context, address id.Address, ref ClaimReference, requiredTopic bool) (*Record, error) {
	now := requestcontext.Now(ctx)
	promoted := false
	record, err := r.store.Execute(ctx, address,
		func(rec *Record) error {
			if rec.Status == StatusRevoked {
				return dErrors.New(dErrors.CodeInvalidState, "identity is revoked")
			}
			return nil
		},
		func(rec *Record) {
			rec.Claims = append(rec.Claims, ref)
			if requiredTopic && rec.Status == StatusPending && ref.ActiveAt(now) {
				rec.ApplySetStatus(StatusVerified, now)
				promoted = true
			} else {
				rec.LastUpdated = now
			}
		},
	)
	if err != nil {
		return nil, wrapIdentityErr(err, address)
	}

	if promoted {
		if err := r.emit(ctx, audit.Event{
			Operation: audit.OpStatusUpdate,
			Timestamp: now,
			Address:   address,
			Reason:    "auto-promoted: required claim issued",
			Changes:   map[string]string{"from": string(StatusPending), "to": string(StatusVerified)},
		}); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// SyncClaimRef mirrors a ledger-side claim mutation into the projection.
func (r *Registry) SyncClaimRef(ctx context.Context, address id.Address, claimID id.ClaimID, status id.ClaimStatus, expiresAt *time.Time) error {
	now := requestcontext.Now(ctx)
	_, err := r.store.Execute(ctx, address,
		func(*Record) error { return nil },
		func(rec *Record) {
			for i := range rec.Claims {
				if rec.Claims[i].ClaimID == claimID {
					rec.Claims[i].Status = status
					if expiresAt != nil {
						rec.Claims[i].ExpiresAt = expiresAt
					}
					rec.LastUpdated = now
					return
				}
			}
			// Reference missing means the projection drifted; re-derivation
			// from the ledger is the recovery path, so only log.
			if r.logger != nil {
				r.logger.WarnContext(ctx, "claim reference missing from projection",
					"address", address, "claim_id", claimID)
			}
		},
	)
	if err != nil {
		return wrapIdentityErr(err, address)
	}
	return nil
}

// RemoveClaimRef drops a reference from the projection. Only the claim
// ledger calls this, when a failed issuance is being unwound; a missing
// reference is not an error.
func (r *Registry) RemoveClaimRef(ctx context.Context, address id.Address, claimID id.ClaimID) error {
	now := requestcontext.Now(ctx)
	_, err := r.store.Execute(ctx, address,
		func(*Record) error { return nil },
		func(rec *Record) {
			for i := range rec.Claims {
				if rec.Claims[i].ClaimID == claimID {
					rec.Claims = append(rec.Claims[:i], rec.Claims[i+1:]...)
					rec.LastUpdated = now
					return
				}
			}
		},
	)
	if err != nil {
		return wrapIdentityErr(err, address)
	}
	return nil
}

// ReevaluateAfterRevocation demotes a verified identity back to pending
// when, after a revocation, no required topic is covered by an active
// unexpired claim. This is the only automatic demotion path; spontaneous
// expiry is handled lazily at verification time instead.
func (r *Registry) ReevaluateAfterRevocation(ctx context.Context, address id.Address, requiredTopics []id.TopicID) (*Record, error) {
	now := requestcontext.Now(ctx)
	demoted := false
	record, err := r.store.Execute(ctx, address,
		func(*Record) error { return nil },
		func(rec *Record) {
			if rec.Status != StatusVerified {
				return
			}
			for _, topic := range requiredTopics {
				if rec.HasActiveClaim(topic, now) {
					return
				}
			}
			if len(requiredTopics) == 0 {
				return
			}
			rec.Status = StatusPending
			rec.LastUpdated = now
			demoted = true
		},
	)
	if err != nil {
		return nil, wrapIdentityErr(err, address)
	}

	if demoted {
		if err := r.emit(ctx, audit.Event{
			Operation: audit.OpStatusUpdate,
			Timestamp: now,
			Address:   address,
			Reason:    "demoted: required claim revoked",
			Changes:   map[string]string{"from": string(StatusVerified), "to": string(StatusPending)},
		}); err != nil {
			return nil, err
		}
	}
	return record, nil
}

func wrapIdentityErr(err error, address id.Address) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", address)
	case dErrors.HasCode(err, dErrors.CodeInvalidState),
		dErrors.HasCode(err, dErrors.CodeValidation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity store operation failed")
	}
}

// emit is fail-closed: identity mutations are compliance events, so a
// failed audit write fails the operation.
func (r *Registry) emit(ctx context.Context, event audit.Event) error {
	if r.auditPublisher == nil {
		return nil
	}
	if err := r.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit emit failed")
	}
	return nil
}
