// Package verification answers "is this identity compliant" queries.
//
// The engine is read-only and soft-failing: non-compliance is reported in
// the result, never as an error. Errors are reserved for infrastructure
// faults. The claim ledger is the source of truth; identity claim
// references are a projection and are not consulted for the verdict.
package verification

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesta/internal/claims"
	"attesta/internal/identity"
	"attesta/internal/topics"
	"attesta/internal/verification/metrics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

var tracer = otel.Tracer("attesta/verification")

// IdentitySource supplies identity records.
type IdentitySource interface {
	GetIdentity(ctx context.Context, address id.Address) (*identity.Record, error)
}

// ClaimSource supplies authoritative claim records.
type ClaimSource interface {
	GetClaim(ctx context.Context, claimID id.ClaimID) (*claims.Claim, error)
	ListByAddress(ctx context.Context, address id.Address) ([]*claims.Claim, error)
}

// TopicCatalog supplies the default required-topic set.
type TopicCatalog interface {
	ListRequiredTopics(ctx context.Context) ([]*topics.Definition, error)
}

// Result is the verdict for one identity verification query.
type Result struct {
	Address    id.Address       `json:"address"`
	IsVerified bool             `json:"isVerified"`
	Identity   *identity.Record `json:"identity,omitempty"`
	// MissingClaims lists required topics with no active unexpired claim.
	MissingClaims []id.TopicID `json:"missingClaims"`
	// ExpiredClaims lists the subset of missing topics where a claim
	// exists but has passed its expiry.
	ExpiredClaims []id.TopicID `json:"expiredClaims"`
	// ExpiringSoon maps satisfied topics to the time remaining before
	// their backing claim expires, when inside the warning window.
	ExpiringSoon map[id.TopicID]time.Duration `json:"expiringSoon,omitempty"`
	// ValidUntil is the soonest expiry among the claims backing a
	// positive verdict. The verdict must not be served past it.
	ValidUntil *time.Time `json:"validUntil,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	CheckedAt  time.Time  `json:"checkedAt"`
}

// Stale reports whether the verdict's validity horizon has passed.
func (r *Result) Stale(now time.Time) bool {
	return r.ValidUntil != nil && !now.Before(*r.ValidUntil)
}

// ClaimCheck is the verdict for one claim verification query.
type ClaimCheck struct {
	ClaimID id.ClaimID    `json:"claimId"`
	Valid   bool          `json:"valid"`
	Claim   *claims.Claim `json:"claim,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// Engine evaluates identities and claims against the required-topic set.
type Engine struct {
	identities IdentitySource
	ledger     ClaimSource
	catalog    TopicCatalog

	cache         *Cache
	metrics       *metrics.Metrics
	expiryWarning time.Duration
	log           *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCache enables result caching for default-set queries.
func WithCache(cache *Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithMetrics enables verification metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExpiryWarning reports time-to-expiry for satisfied topics whose
// backing claim expires within the window.
func WithExpiryWarning(window time.Duration) Option {
	return func(e *Engine) { e.expiryWarning = window }
}

// New creates a verification engine.
func New(identities IdentitySource, ledger ClaimSource, catalog TopicCatalog, opts ...Option) *Engine {
	e := &Engine{
		identities: identities,
		ledger:     ledger,
		catalog:    catalog,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VerifyIdentity evaluates an address against required topics. A nil
// requiredTopics uses the registry's required set. The verdict is verified
// iff the identity exists, is not revoked, and every required topic has an
// active unexpired claim in the ledger.
func (e *Engine) VerifyIdentity(ctx context.Context, address id.Address, requiredTopics []id.TopicID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "verification.VerifyIdentity",
		trace.WithAttributes(attribute.String("identity.address", address.String())))
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)

	// Only default-set queries hit the cache; custom sets are too sparse
	// to be worth keying.
	useCache := requiredTopics == nil
	if useCache {
		cached, err := e.cache.Get(ctx, address)
		if err != nil {
			e.log.WarnContext(ctx, "verification cache read failed", "address", address, "error", err)
		} else if cached != nil {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
				e.metrics.ObserveVerification(start, cached.IsVerified)
			}
			span.SetAttributes(attribute.Bool("verification.cached", true))
			return cached, nil
		}
		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
	}

	res, err := e.evaluate(ctx, address, requiredTopics, now)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.ObserveVerification(start, res.IsVerified)
	}
	span.SetAttributes(attribute.Bool("verification.verified", res.IsVerified))

	if useCache {
		if err := e.cache.Set(ctx, address, res); err != nil {
			e.log.WarnContext(ctx, "verification cache write failed", "address", address, "error", err)
		}
	}
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, address id.Address, requiredTopics []id.TopicID, now time.Time) (*Result, error) {
	res := &Result{
		Address:       address,
		MissingClaims: []id.TopicID{},
		ExpiredClaims: []id.TopicID{},
		CheckedAt:     now,
	}

	rec, err := e.identities.GetIdentity(ctx, address)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			res.Reason = "identity not registered"
			return res, nil
		}
		return nil, err
	}
	res.Identity = rec

	if rec.Status == identity.StatusRevoked {
		res.Reason = "identity is revoked"
		return res, nil
	}

	required := requiredTopics
	if required == nil {
		defs, err := e.catalog.ListRequiredTopics(ctx)
		if err != nil {
			return nil, err
		}
		required = make([]id.TopicID, 0, len(defs))
		for _, def := range defs {
			required = append(required, def.ID)
		}
	}
	if len(required) == 0 {
		res.IsVerified = true
		return res, nil
	}

	ledgerClaims, err := e.ledger.ListByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	var validUntil *time.Time
	for _, topic := range required {
		best := latestForTopic(ledgerClaims, topic, now)
		if best == nil {
			res.MissingClaims = append(res.MissingClaims, topic)
			if hasExpiredClaim(ledgerClaims, topic, now) {
				res.ExpiredClaims = append(res.ExpiredClaims, topic)
			}
			continue
		}
		if best.ExpiresAt == nil {
			continue
		}
		if validUntil == nil || best.ExpiresAt.Before(*validUntil) {
			validUntil = best.ExpiresAt
		}
		if e.expiryWarning > 0 {
			remaining := best.ExpiresAt.Sub(now)
			if remaining <= e.expiryWarning {
				if res.ExpiringSoon == nil {
					res.ExpiringSoon = make(map[id.TopicID]time.Duration)
				}
				res.ExpiringSoon[topic] = remaining
			}
		}
	}

	if len(res.MissingClaims) > 0 {
		res.Reason = "missing required claims"
		return res, nil
	}
	res.IsVerified = true
	res.ValidUntil = validUntil
	return res, nil
}

// VerifyClaim evaluates a single claim. Like VerifyIdentity, a failed
// check is a verdict, not an error.
func (e *Engine) VerifyClaim(ctx context.Context, claimID id.ClaimID) (*ClaimCheck, error) {
	ctx, span := tracer.Start(ctx, "verification.VerifyClaim",
		trace.WithAttributes(attribute.String("claim.id", claimID.String())))
	defer span.End()

	check := &ClaimCheck{ClaimID: claimID}
	claim, err := e.ledger.GetClaim(ctx, claimID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			check.Reason = "claim not found"
			return check, nil
		}
		return nil, err
	}
	check.Claim = claim

	now := requestcontext.Now(ctx)
	switch {
	case claim.Status == id.ClaimStatusRevoked:
		check.Reason = "revoked: " + claim.RevocationReason
	case claim.Status == id.ClaimStatusExpired || claim.ExpiredAt(now):
		check.Reason = "expired"
	default:
		check.Valid = true
	}
	span.SetAttributes(attribute.Bool("claim.valid", check.Valid))
	return check, nil
}

// InvalidateCache drops any cached verdict for an address. Claim and
// identity mutations call this so a stale positive never survives a
// revocation.
func (e *Engine) InvalidateCache(ctx context.Context, address id.Address) {
	if err := e.cache.Invalidate(ctx, address); err != nil {
		e.log.WarnContext(ctx, "verification cache invalidation failed", "address", address, "error", err)
	}
}

// latestForTopic picks the most recently issued active claim for a topic.
func latestForTopic(list []*claims.Claim, topic id.TopicID, now time.Time) *claims.Claim {
	var best *claims.Claim
	for _, c := range list {
		if c.Topic != topic || !c.ActiveAt(now) {
			continue
		}
		if best == nil || c.IssuedAt.After(best.IssuedAt) {
			best = c
		}
	}
	return best
}

func hasExpiredClaim(list []*claims.Claim, topic id.TopicID, now time.Time) bool {
	for _, c := range list {
		if c.Topic != topic {
			continue
		}
		if c.Status == id.ClaimStatusExpired || (c.Status == id.ClaimStatusActive && c.ExpiredAt(now)) {
			return true
		}
	}
	return false
}
