package claims

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attesta/internal/identity"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Ledger owns claim records and is the only component that mutates claim
// state. It enforces issuer authorization at issuance time, keeps the
// identity registry's reference projection in sync, and maintains issuer
// statistics.
type Ledger struct {
	store      Store
	issuers    IssuerDirectory
	catalog    TopicCatalog
	identities IdentityProjection

	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(l *Ledger) { l.auditPublisher = p }
}

func New(store Store, issuers IssuerDirectory, catalog TopicCatalog, identities IdentityProjection, opts ...Option) (*Ledger, error) {
	switch {
	case store == nil:
		return nil, errors.New("claim store is required")
	case issuers == nil:
		return nil, errors.New("issuer directory is required")
	case catalog == nil:
		return nil, errors.New("topic catalog is required")
	case identities == nil:
		return nil, errors.New("identity projection is required")
	}
	l := &Ledger{store: store, issuers: issuers, catalog: catalog, identities: identities}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// IssueRequest carries the inputs of a claim issuance.
type IssueRequest struct {
	Address id.Address
	Topic   id.TopicID
	Issuer  id.IssuerID
	Data    map[string]any
	// ExpiresAt overrides the topic's default expiry. Nil applies the
	// topic policy; a topic with no default produces a non-expiring claim.
	ExpiresAt *time.Time
	// VerificationHash links to on-chain state; derived when empty.
	VerificationHash string
}

// IssueClaim validates authorization and expiry ordering, creates the
// claim, and propagates side effects: the identity's reference list, the
// issuer's counters, and the audit trail. Authorization failures create no
// claim record.
func (l *Ledger) IssueClaim(ctx context.Context, req IssueRequest) (*Claim, error) {
	if req.Address.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if req.Topic.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim topic is required")
	}
	if req.Issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer is required")
	}

	topicDef, err := l.catalog.GetTopic(ctx, req.Topic)
	if err != nil {
		return nil, err
	}

	record, err := l.identities.GetIdentity(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	if record.Status == identity.StatusRevoked {
		return nil, dErrors.Newf(dErrors.CodeInvalidState,
			"identity %s is revoked and cannot receive claims", req.Address)
	}
	if !record.AcceptsIssuer(req.Issuer) {
		return nil, dErrors.Newf(dErrors.CodeUnauthorizedIssuer,
			"issuer %s is not on identity %s's trusted issuer list", req.Issuer, req.Address)
	}

	authorized, err := l.issuers.IsAuthorized(ctx, req.Issuer, req.Topic)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, dErrors.Newf(dErrors.CodeUnauthorizedIssuer,
			"issuer %s is not authorized for topic %s", req.Issuer, req.Topic)
	}

	now := requestcontext.Now(ctx)
	expiresAt := req.ExpiresAt
	if expiresAt == nil && topicDef.DefaultExpiryDays > 0 {
		t := now.AddDate(0, 0, topicDef.DefaultExpiryDays)
		expiresAt = &t
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be after issuance")
	}

	claim := &Claim{
		ID:               id.NewClaimID(),
		Address:          req.Address,
		Topic:            req.Topic,
		Issuer:           req.Issuer,
		Data:             req.Data,
		IssuedAt:         now,
		ExpiresAt:        expiresAt,
		Status:           id.ClaimStatusActive,
		VerificationHash: req.VerificationHash,
		UpdatedAt:        now,
	}
	if claim.VerificationHash == "" {
		claim.VerificationHash = DeriveVerificationHash(req.Address, req.Topic, req.Issuer, now)
	}

	if err := l.store.Create(ctx, claim); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
	}

	if _, err := l.identities.AppendClaimRef(ctx, req.Address, identity.ClaimReference{
		ClaimID:   claim.ID,
		Topic:     claim.Topic,
		IssuedAt:  claim.IssuedAt,
		ExpiresAt: claim.ExpiresAt,
		Status:    claim.Status,
	}, topicDef.Required); err != nil {
		l.discardIssue(ctx, claim, false, false)
		return nil, err
	}

	if err := l.issuers.RecordIssuance(ctx, req.Issuer); err != nil {
		l.discardIssue(ctx, claim, true, false)
		return nil, err
	}

	if err := l.emit(ctx, audit.Event{
		Operation: audit.OpClaimIssue,
		Timestamp: now,
		Address:   req.Address,
		ClaimID:   claim.ID,
		Topic:     req.Topic,
		Issuer:    req.Issuer,
		Operator:  requestcontext.Operator(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}); err != nil {
		l.discardIssue(ctx, claim, true, true)
		return nil, err
	}

	return claim, nil
}

// discardIssue unwinds a partially applied issuance so the failed call
// leaves no trace: the claim record is deleted, the projection reference
// is removed (re-evaluating any auto-promotion it triggered), and issuer
// counters are reverted. Unwind steps are best-effort; a step that fails
// is logged and the rest still run.
func (l *Ledger) discardIssue(ctx context.Context, claim *Claim, refAppended, issuanceRecorded bool) {
	if issuanceRecorded {
		if err := l.issuers.RecordIssuanceReverted(ctx, claim.Issuer); err != nil {
			l.warnDiscard(ctx, claim, "revert issuance counters", err)
		}
	}
	if refAppended {
		if err := l.identities.RemoveClaimRef(ctx, claim.Address, claim.ID); err != nil {
			l.warnDiscard(ctx, claim, "remove claim reference", err)
		}
		if err := l.reevaluateIfRequired(ctx, claim); err != nil {
			l.warnDiscard(ctx, claim, "re-evaluate identity status", err)
		}
	}
	if err := l.store.Delete(ctx, claim.ID); err != nil {
		l.warnDiscard(ctx, claim, "delete claim record", err)
	}
}

func (l *Ledger) warnDiscard(ctx context.Context, claim *Claim, step string, err error) {
	if l.logger == nil {
		return
	}
	l.logger.WarnContext(ctx, "failed issuance left partial state",
		"claim_id", claim.ID, "address", claim.Address, "step", step, "error", err)
}

// GetClaim returns a claim by id without materializing expiry.
func (l *Ledger) GetClaim(ctx context.Context, claimID id.ClaimID) (*Claim, error) {
	claim, err := l.store.Get(ctx, claimID)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}
	return claim, nil
}

// ListByAddress returns an identity's claims in issuance order.
func (l *Ledger) ListByAddress(ctx context.Context, address id.Address) ([]*Claim, error) {
	out, err := l.store.ListByAddress(ctx, address)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return out, nil
}

// CountByStatus aggregates claim counts for compliance reporting. Counts
// reflect materialized status; claims past expiry but not yet resolved
// still count as active.
func (l *Ledger) CountByStatus(ctx context.Context) (map[id.ClaimStatus]int, error) {
	counts, err := l.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count claims")
	}
	return counts, nil
}

// RevokeClaim is the explicit administrative revocation. A second revoke
// fails with an invalid-state error and leaves the original reason intact.
func (l *Ledger) RevokeClaim(ctx context.Context, claimID id.ClaimID, reason string) (*Claim, error) {
	now := requestcontext.Now(ctx)
	claim, err := l.store.Execute(ctx, claimID,
		func(c *Claim) error { return c.CanRevoke(reason, now) },
		func(c *Claim) { c.ApplyRevoke(reason, now) },
	)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}

	if err := l.identities.SyncClaimRef(ctx, claim.Address, claim.ID, id.ClaimStatusRevoked, nil); err != nil {
		return nil, err
	}
	if err := l.issuers.RecordClaimClosed(ctx, claim.Issuer); err != nil {
		return nil, err
	}

	// A revoked required-topic claim may have been the identity's only
	// qualifying claim; re-evaluate and demote verified→pending if so.
	if err := l.reevaluateIfRequired(ctx, claim); err != nil {
		return nil, err
	}

	if err := l.emit(ctx, audit.Event{
		Operation: audit.OpClaimRevoke,
		Timestamp: now,
		Address:   claim.Address,
		ClaimID:   claim.ID,
		Topic:     claim.Topic,
		Issuer:    claim.Issuer,
		Operator:  requestcontext.Operator(ctx),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return nil, err
	}

	return claim, nil
}

// UpdateClaim edits data/expiry on active claims only.
func (l *Ledger) UpdateClaim(ctx context.Context, claimID id.ClaimID, patch Patch) (*Claim, error) {
	now := requestcontext.Now(ctx)
	claim, err := l.store.Execute(ctx, claimID,
		func(c *Claim) error { return c.CanUpdate(patch, now) },
		func(c *Claim) { c.ApplyUpdate(patch, now) },
	)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}

	if patch.ExpiresAt != nil {
		if err := l.identities.SyncClaimRef(ctx, claim.Address, claim.ID, claim.Status, claim.ExpiresAt); err != nil {
			return nil, err
		}
	}

	if err := l.emit(ctx, audit.Event{
		Operation: audit.OpClaimUpdate,
		Timestamp: now,
		Address:   claim.Address,
		ClaimID:   claim.ID,
		Topic:     claim.Topic,
		Operator:  requestcontext.Operator(ctx),
	}); err != nil {
		return nil, err
	}

	return claim, nil
}

// ResolveExpiry materializes the active→expired transition for a claim
// whose expiry has passed. Verification never needs it, since expiry is
// always re-derived from ExpiresAt; it keeps reporting counters and issuer
// statistics fresh.
func (l *Ledger) ResolveExpiry(ctx context.Context, claimID id.ClaimID) (*Claim, error) {
	now := requestcontext.Now(ctx)
	transitioned := false
	claim, err := l.store.Execute(ctx, claimID,
		func(*Claim) error { return nil },
		func(c *Claim) {
			if c.Status == id.ClaimStatusActive && c.ExpiredAt(now) {
				c.Status = id.ClaimStatusExpired
				c.UpdatedAt = now
				transitioned = true
			}
		},
	)
	if err != nil {
		return nil, wrapClaimErr(err, claimID)
	}
	if !transitioned {
		return claim, nil
	}

	if err := l.identities.SyncClaimRef(ctx, claim.Address, claim.ID, id.ClaimStatusExpired, nil); err != nil {
		return nil, err
	}
	if err := l.issuers.RecordClaimClosed(ctx, claim.Issuer); err != nil {
		return nil, err
	}

	// Expiry observation is an operations event; best-effort.
	if l.auditPublisher != nil {
		if err := l.auditPublisher.Emit(ctx, audit.Event{
			Operation: audit.OpClaimExpire,
			Timestamp: now,
			Address:   claim.Address,
			ClaimID:   claim.ID,
			Topic:     claim.Topic,
			Issuer:    claim.Issuer,
		}); err != nil && l.logger != nil {
			l.logger.WarnContext(ctx, "claim expiry audit emit failed", "claim_id", claim.ID, "error", err)
		}
	}

	return claim, nil
}

func (l *Ledger) reevaluateIfRequired(ctx context.Context, claim *Claim) error {
	topicDef, err := l.catalog.GetTopic(ctx, claim.Topic)
	if err != nil {
		// Topic definitions are never deleted, so a miss here is drift;
		// skip re-evaluation rather than fail the revocation.
		if l.logger != nil {
			l.logger.WarnContext(ctx, "topic missing during re-evaluation", "topic", claim.Topic, "error", err)
		}
		return nil
	}
	if !topicDef.Required {
		return nil
	}
	required, err := l.catalog.ListRequiredTopics(ctx)
	if err != nil {
		return err
	}
	requiredIDs := make([]id.TopicID, 0, len(required))
	for _, def := range required {
		requiredIDs = append(requiredIDs, def.ID)
	}
	_, err = l.identities.ReevaluateAfterRevocation(ctx, claim.Address, requiredIDs)
	return err
}

func wrapClaimErr(err error, claimID id.ClaimID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "claim %s not found", claimID)
	case dErrors.HasCode(err, dErrors.CodeInvalidState),
		dErrors.HasCode(err, dErrors.CodeValidation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "claim store operation failed")
	}
}

// emit is fail-closed: claim mutations are compliance events.
func (l *Ledger) emit(ctx context.Context, event audit.Event) error {
	if l.auditPublisher == nil {
		return nil
	}
	if err := l.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit emit failed")
	}
	return nil
}
