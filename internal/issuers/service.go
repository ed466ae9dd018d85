package issuers

import (
	"context"
	"errors"
	"log/slog"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Directory manages the registry of external attestation authorities. The
// claim ledger consults it before accepting any claim.
type Directory struct {
	store Store

	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Directory)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(d *Directory) { d.auditPublisher = p }
}

func New(store Store, opts ...Option) (*Directory, error) {
	if store == nil {
		return nil, errors.New("issuer store is required")
	}
	d := &Directory{store: store}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RegisterIssuer creates a new issuer with status active.
func (d *Directory) RegisterIssuer(ctx context.Context, issuerID id.IssuerID, name string, authorized []id.TopicID, metadata map[string]string) (*TrustedIssuer, error) {
	now := requestcontext.Now(ctx)
	issuer, err := NewTrustedIssuer(issuerID, name, authorized, metadata, now)
	if err != nil {
		return nil, err
	}

	if err := d.store.Create(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "issuer %s already registered", issuerID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}

	d.emit(ctx, audit.Event{
		Operation: audit.OpIssuerRegister,
		Timestamp: now,
		Issuer:    issuerID,
		Operator:  requestcontext.Operator(ctx),
	})
	return issuer, nil
}

// GetIssuer returns an issuer by id.
func (d *Directory) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*TrustedIssuer, error) {
	issuer, err := d.store.Get(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "issuer %s not found", issuerID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get issuer")
	}
	return issuer, nil
}

// ListIssuers returns every registered issuer.
func (d *Directory) ListIssuers(ctx context.Context) ([]*TrustedIssuer, error) {
	out, err := d.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return out, nil
}

// Authorize grants the issuer permission to issue the topic. Previously
// issued claims are unaffected either way.
func (d *Directory) Authorize(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (*TrustedIssuer, error) {
	return d.mutateAuthorization(ctx, issuerID, topic, true)
}

// RevokeAuthorization removes the issuer's permission for the topic.
func (d *Directory) RevokeAuthorization(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (*TrustedIssuer, error) {
	return d.mutateAuthorization(ctx, issuerID, topic, false)
}

func (d *Directory) mutateAuthorization(ctx context.Context, issuerID id.IssuerID, topic id.TopicID, grant bool) (*TrustedIssuer, error) {
	if topic.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "topic is required")
	}
	now := requestcontext.Now(ctx)
	issuer, err := d.store.Execute(ctx, issuerID,
		func(i *TrustedIssuer) error {
			if i.Status == StatusRevoked {
				return dErrors.New(dErrors.CodeInvalidState, "issuer is revoked")
			}
			return nil
		},
		func(i *TrustedIssuer) {
			if grant {
				i.AuthorizedClaims[topic] = struct{}{}
			} else {
				delete(i.AuthorizedClaims, topic)
			}
			i.LastActivity = now
		},
	)
	if err != nil {
		return nil, wrapIssuerErr(err, issuerID)
	}

	action := "revoked"
	if grant {
		action = "granted"
	}
	d.emit(ctx, audit.Event{
		Operation: audit.OpIssuerAuthorize,
		Timestamp: now,
		Issuer:    issuerID,
		Topic:     topic,
		Operator:  requestcontext.Operator(ctx),
		Changes:   map[string]string{"authorization": action},
	})
	return issuer, nil
}

// SetStatus transitions the issuer's lifecycle status. Suspension is
// reversible; revocation is terminal.
func (d *Directory) SetStatus(ctx context.Context, issuerID id.IssuerID, next Status) (*TrustedIssuer, error) {
	now := requestcontext.Now(ctx)
	var prev Status
	issuer, err := d.store.Execute(ctx, issuerID,
		func(i *TrustedIssuer) error {
			prev = i.Status
			return i.CanSetStatus(next)
		},
		func(i *TrustedIssuer) {
			i.ApplySetStatus(next, now)
		},
	)
	if err != nil {
		return nil, wrapIssuerErr(err, issuerID)
	}

	d.emit(ctx, audit.Event{
		Operation: audit.OpIssuerStatus,
		Timestamp: now,
		Issuer:    issuerID,
		Operator:  requestcontext.Operator(ctx),
		Changes:   map[string]string{"from": string(prev), "to": string(next)},
	})
	return issuer, nil
}

// IsAuthorized is the pure query the claim ledger gates issuance on: true
// iff status is active and the topic is in the issuer's authorized set.
// Unknown issuers are simply not authorized.
func (d *Directory) IsAuthorized(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (bool, error) {
	issuer, err := d.store.Get(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer authorization")
	}
	return issuer.IsAuthorized(topic), nil
}

// RecordIssuance bumps the issuer's issuance statistics. Invoked by the
// claim ledger on successful issuance.
func (d *Directory) RecordIssuance(ctx context.Context, issuerID id.IssuerID) error {
	now := requestcontext.Now(ctx)
	_, err := d.store.Execute(ctx, issuerID,
		func(*TrustedIssuer) error { return nil },
		func(i *TrustedIssuer) {
			i.IssuedClaimsCount++
			i.ActiveClaimsCount++
			i.LastActivity = now
		},
	)
	if err != nil {
		return wrapIssuerErr(err, issuerID)
	}
	return nil
}

// RecordIssuanceReverted undoes a RecordIssuance whose claim was
// discarded before issuance completed. Counters never go negative.
func (d *Directory) RecordIssuanceReverted(ctx context.Context, issuerID id.IssuerID) error {
	_, err := d.store.Execute(ctx, issuerID,
		func(*TrustedIssuer) error { return nil },
		func(i *TrustedIssuer) {
			if i.IssuedClaimsCount > 0 {
				i.IssuedClaimsCount--
			}
			if i.ActiveClaimsCount > 0 {
				i.ActiveClaimsCount--
			}
		},
	)
	if err != nil {
		return wrapIssuerErr(err, issuerID)
	}
	return nil
}

// RecordClaimClosed decrements the active claim counter when one of the
// issuer's claims is revoked or observed expired.
func (d *Directory) RecordClaimClosed(ctx context.Context, issuerID id.IssuerID) error {
	_, err := d.store.Execute(ctx, issuerID,
		func(*TrustedIssuer) error { return nil },
		func(i *TrustedIssuer) {
			if i.ActiveClaimsCount > 0 {
				i.ActiveClaimsCount--
			}
		},
	)
	if err != nil {
		return wrapIssuerErr(err, issuerID)
	}
	return nil
}

func wrapIssuerErr(err error, issuerID id.IssuerID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "issuer %s not found", issuerID)
	case dErrors.HasCode(err, dErrors.CodeInvalidState),
		dErrors.HasCode(err, dErrors.CodeValidation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "issuer store operation failed")
	}
}

func (d *Directory) emit(ctx context.Context, event audit.Event) {
	if d.auditPublisher == nil {
		return
	}
	if err := d.auditPublisher.Emit(ctx, event); err != nil && d.logger != nil {
		d.logger.WarnContext(ctx, "issuer audit emit failed", "operation", event.Operation, "error", err)
	}
}
