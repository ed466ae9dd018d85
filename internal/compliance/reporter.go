// Package compliance produces platform-wide compliance snapshots for
// administrators and regulators. The reporter is strictly read-only: it
// aggregates what the registries already know and never mutates state.
package compliance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/platform/config"
	"attesta/internal/topics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/requestcontext"
)

// IdentitySource supplies identity aggregates.
type IdentitySource interface {
	ListIdentities(ctx context.Context) ([]*identity.Record, error)
	CountByStatus(ctx context.Context) (map[identity.Status]int, error)
}

// ClaimSource supplies claim aggregates.
type ClaimSource interface {
	CountByStatus(ctx context.Context) (map[id.ClaimStatus]int, error)
}

// IssuerSource supplies the issuer roster.
type IssuerSource interface {
	ListIssuers(ctx context.Context) ([]*issuers.TrustedIssuer, error)
}

// TopicCatalog supplies the required-topic set.
type TopicCatalog interface {
	ListRequiredTopics(ctx context.Context) ([]*topics.Definition, error)
}

// AuditSource supplies audit activity aggregates. Optional.
type AuditSource interface {
	CountByOperation(ctx context.Context) (map[audit.Operation]int, error)
}

// Violations counts the conditions that lower the compliance score.
type Violations struct {
	// RevokedIdentities counts identities in the revoked state.
	RevokedIdentities int `json:"revokedIdentities"`
	// LapsedRequired counts non-revoked identities whose required-topic
	// coverage lapsed through claim expiry or revocation.
	LapsedRequired int `json:"lapsedRequired"`
	// Unverified counts identities still pending.
	Unverified int `json:"unverified"`
}

// Report is one point-in-time compliance snapshot.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`

	TotalIdentities    int                     `json:"totalIdentities"`
	IdentitiesByStatus map[identity.Status]int `json:"identitiesByStatus"`

	TotalClaims    int                       `json:"totalClaims"`
	ClaimsByStatus map[id.ClaimStatus]int    `json:"claimsByStatus"`
	AuditActivity  map[audit.Operation]int   `json:"auditActivity,omitempty"`

	TotalIssuers  int `json:"totalIssuers"`
	ActiveIssuers int `json:"activeIssuers"`

	// ComplianceScore is 100 minus the weighted violation ratios, clamped
	// to [0, 100]. An empty platform scores 100.
	ComplianceScore float64    `json:"complianceScore"`
	Violations      Violations `json:"violations"`

	Recommendations []string  `json:"recommendations"`
	NextCheckDue    time.Time `json:"nextCheckDue"`
}

// Reporter aggregates compliance state across the registries.
type Reporter struct {
	identities IdentitySource
	claims     ClaimSource
	issuers    IssuerSource
	catalog    TopicCatalog
	auditTrail AuditSource

	weights       config.ScoreWeights
	checkInterval time.Duration
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithAuditSource includes audit activity counts in reports.
func WithAuditSource(src AuditSource) Option {
	return func(r *Reporter) { r.auditTrail = src }
}

// WithCheckInterval sets the recommended re-check cadence.
func WithCheckInterval(interval time.Duration) Option {
	return func(r *Reporter) { r.checkInterval = interval }
}

// New creates a compliance reporter.
func New(identities IdentitySource, claims ClaimSource, issuerDir IssuerSource, catalog TopicCatalog, weights config.ScoreWeights, opts ...Option) *Reporter {
	r := &Reporter{
		identities:    identities,
		claims:        claims,
		issuers:       issuerDir,
		catalog:       catalog,
		weights:       weights,
		checkInterval: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateReport builds a snapshot. The source aggregations are
// independent, so they run in parallel; the first failure aborts the report.
func (r *Reporter) GenerateReport(ctx context.Context) (*Report, error) {
	now := requestcontext.Now(ctx)

	var (
		records        []*identity.Record
		identityCounts map[identity.Status]int
		claimCounts    map[id.ClaimStatus]int
		roster         []*issuers.TrustedIssuer
		requiredDefs   []*topics.Definition
		auditCounts    map[audit.Operation]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		records, err = r.identities.ListIdentities(gctx)
		return err
	})
	g.Go(func() (err error) {
		identityCounts, err = r.identities.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		claimCounts, err = r.claims.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		roster, err = r.issuers.ListIssuers(gctx)
		return err
	})
	g.Go(func() (err error) {
		requiredDefs, err = r.catalog.ListRequiredTopics(gctx)
		return err
	})
	if r.auditTrail != nil {
		g.Go(func() (err error) {
			auditCounts, err = r.auditTrail.CountByOperation(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compliance aggregation failed")
	}

	report := &Report{
		GeneratedAt:        now,
		IdentitiesByStatus: identityCounts,
		ClaimsByStatus:     claimCounts,
		AuditActivity:      auditCounts,
		TotalIssuers:       len(roster),
		NextCheckDue:       now.Add(r.checkInterval),
	}
	for _, n := range identityCounts {
		report.TotalIdentities += n
	}
	for _, n := range claimCounts {
		report.TotalClaims += n
	}
	for _, iss := range roster {
		if iss.Status == issuers.StatusActive {
			report.ActiveIssuers++
		}
	}

	required := make([]id.TopicID, 0, len(requiredDefs))
	for _, def := range requiredDefs {
		required = append(required, def.ID)
	}
	report.Violations = deriveViolations(records, required, now)
	report.ComplianceScore = r.score(report)
	report.Recommendations = r.recommend(report)
	return report, nil
}

// deriveViolations classifies identities. Lapsed coverage is derived from
// the claim reference projection against the clock, so expiry counts even
// before the ledger materializes it.
func deriveViolations(records []*identity.Record, required []id.TopicID, now time.Time) Violations {
	var v Violations
	for _, rec := range records {
		switch rec.Status {
		case identity.StatusRevoked:
			v.RevokedIdentities++
			continue
		case identity.StatusPending:
			v.Unverified++
		}
		if len(required) == 0 {
			continue
		}
		hadCoverage := false
		lapsed := false
		for _, topic := range required {
			if rec.HasActiveClaim(topic, now) {
				continue
			}
			for _, ref := range rec.Claims {
				if ref.Topic == topic {
					hadCoverage = true
					break
				}
			}
			lapsed = true
		}
		if lapsed && hadCoverage {
			v.LapsedRequired++
		}
	}
	return v
}

func (r *Reporter) score(report *Report) float64 {
	if report.TotalIdentities == 0 {
		return 100
	}
	total := float64(report.TotalIdentities)
	score := 100 -
		r.weights.RevokedIdentities*float64(report.Violations.RevokedIdentities)/total -
		r.weights.ExpiredRequired*float64(report.Violations.LapsedRequired)/total -
		r.weights.Unverified*float64(report.Violations.Unverified)/total
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (r *Reporter) recommend(report *Report) []string {
	var recs []string
	if report.Violations.RevokedIdentities > 0 {
		recs = append(recs, fmt.Sprintf("review %d revoked identity record(s) for follow-up action", report.Violations.RevokedIdentities))
	}
	if report.Violations.LapsedRequired > 0 {
		recs = append(recs, fmt.Sprintf("%d identity record(s) have lapsed required claims; prompt holders to renew", report.Violations.LapsedRequired))
	}
	if report.TotalIdentities > 0 {
		pendingRatio := float64(report.Violations.Unverified) / float64(report.TotalIdentities)
		if pendingRatio > 0.25 {
			recs = append(recs, fmt.Sprintf("%.0f%% of identities are unverified; check onboarding throughput", pendingRatio*100))
		}
	}
	if report.ActiveIssuers == 0 {
		recs = append(recs, "no active trusted issuers; new claims cannot be issued")
	}
	if len(recs) == 0 {
		recs = append(recs, "no action required")
	}
	return recs
}
