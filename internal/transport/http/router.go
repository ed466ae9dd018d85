// Package httptransport is the thin HTTP layer over the identity core.
// Handlers decode, delegate, and encode; every business rule lives in the
// domain services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attesta/internal/claims"
	"attesta/internal/compliance"
	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/platform/middleware"
	"attesta/internal/topics"
	"attesta/internal/verification"
	id "attesta/pkg/domain"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/httputil"
)

// TopicRegistry is the registry surface the topic handlers need.
type TopicRegistry interface {
	DefineTopic(ctx context.Context, def *topics.Definition) (*topics.Definition, error)
	GetTopic(ctx context.Context, topicID id.TopicID) (*topics.Definition, error)
	ListTopics(ctx context.Context) ([]*topics.Definition, error)
	UpdateTopic(ctx context.Context, topicID id.TopicID, patch topics.Patch) (*topics.Definition, error)
}

// IssuerDirectory is the directory surface the issuer handlers need.
type IssuerDirectory interface {
	RegisterIssuer(ctx context.Context, issuerID id.IssuerID, name string, authorized []id.TopicID, metadata map[string]string) (*issuers.TrustedIssuer, error)
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuers.TrustedIssuer, error)
	ListIssuers(ctx context.Context) ([]*issuers.TrustedIssuer, error)
	Authorize(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (*issuers.TrustedIssuer, error)
	RevokeAuthorization(ctx context.Context, issuerID id.IssuerID, topic id.TopicID) (*issuers.TrustedIssuer, error)
	SetStatus(ctx context.Context, issuerID id.IssuerID, next issuers.Status) (*issuers.TrustedIssuer, error)
}

// IdentityRegistry is the registry surface the identity handlers need.
type IdentityRegistry interface {
	RegisterIdentity(ctx context.Context, address id.Address, userID id.UserID, identityKey string, trustedIssuers []id.IssuerID) (*identity.Record, error)
	BatchRegister(ctx context.Context, items []identity.RegisterItem) []identity.BatchItemResult
	GetIdentity(ctx context.Context, address id.Address) (*identity.Record, error)
	ListIdentities(ctx context.Context) ([]*identity.Record, error)
	UpdateStatus(ctx context.Context, address id.Address, next identity.Status, reason string) (*identity.Record, error)
}

// ClaimLedger is the ledger surface the claim handlers need.
type ClaimLedger interface {
	IssueClaim(ctx context.Context, req claims.IssueRequest) (*claims.Claim, error)
	GetClaim(ctx context.Context, claimID id.ClaimID) (*claims.Claim, error)
	ListByAddress(ctx context.Context, address id.Address) ([]*claims.Claim, error)
	RevokeClaim(ctx context.Context, claimID id.ClaimID, reason string) (*claims.Claim, error)
	UpdateClaim(ctx context.Context, claimID id.ClaimID, patch claims.Patch) (*claims.Claim, error)
	ResolveExpiry(ctx context.Context, claimID id.ClaimID) (*claims.Claim, error)
	BatchUpdate(ctx context.Context, ops []claims.BatchOp) []claims.BatchOpResult
}

// Verifier is the verification surface.
type Verifier interface {
	VerifyIdentity(ctx context.Context, address id.Address, requiredTopics []id.TopicID) (*verification.Result, error)
	VerifyClaim(ctx context.Context, claimID id.ClaimID) (*verification.ClaimCheck, error)
	InvalidateCache(ctx context.Context, address id.Address)
}

// Reporter generates compliance snapshots.
type Reporter interface {
	GenerateReport(ctx context.Context) (*compliance.Report, error)
}

// AuditTrail reads the per-identity audit history.
type AuditTrail interface {
	ListByAddress(ctx context.Context, address id.Address) ([]audit.Event, error)
}

// Handler bundles the domain services behind the HTTP surface.
type Handler struct {
	logger     *slog.Logger
	topics     TopicRegistry
	issuers    IssuerDirectory
	identities IdentityRegistry
	ledger     ClaimLedger
	verifier   Verifier
	reporter   Reporter
	auditTrail AuditTrail
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	logger *slog.Logger,
	topicRegistry TopicRegistry,
	issuerDirectory IssuerDirectory,
	identityRegistry IdentityRegistry,
	ledger ClaimLedger,
	verifier Verifier,
	reporter Reporter,
	auditTrail AuditTrail,
) *Handler {
	return &Handler{
		logger:     logger,
		topics:     topicRegistry,
		issuers:    issuerDirectory,
		identities: identityRegistry,
		ledger:     ledger,
		verifier:   verifier,
		reporter:   reporter,
		auditTrail: auditTrail,
	}
}

// NewRouter wires middleware and routes. The verification surface is
// public; everything under /admin requires an operator token.
func NewRouter(h *Handler, auth middleware.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/verify", func(r chi.Router) {
		r.Get("/identities/{address}", h.handleVerifyIdentity)
		r.Get("/claims/{claimID}", h.handleVerifyClaim)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireOperator(auth, h.logger))

		r.Route("/topics", func(r chi.Router) {
			r.Post("/", h.handleDefineTopic)
			r.Get("/", h.handleListTopics)
			r.Get("/{topicID}", h.handleGetTopic)
			r.Patch("/{topicID}", h.handleUpdateTopic)
		})

		r.Route("/issuers", func(r chi.Router) {
			r.Post("/", h.handleRegisterIssuer)
			r.Get("/", h.handleListIssuers)
			r.Get("/{issuerID}", h.handleGetIssuer)
			r.Post("/{issuerID}/authorizations", h.handleAuthorizeIssuer)
			r.Delete("/{issuerID}/authorizations/{topicID}", h.handleRevokeAuthorization)
			r.Put("/{issuerID}/status", h.handleSetIssuerStatus)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Post("/", h.handleRegisterIdentity)
			r.Post("/batch", h.handleBatchRegister)
			r.Get("/", h.handleListIdentities)
			r.Get("/{address}", h.handleGetIdentity)
			r.Put("/{address}/status", h.handleUpdateIdentityStatus)
			r.Get("/{address}/claims", h.handleListClaims)
			r.Get("/{address}/audit", h.handleAuditTrail)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.handleIssueClaim)
			r.Post("/batch", h.handleBatchClaims)
			r.Get("/{claimID}", h.handleGetClaim)
			r.Patch("/{claimID}", h.handleUpdateClaim)
			r.Post("/{claimID}/revoke", h.handleRevokeClaim)
			r.Post("/{claimID}/resolve-expiry", h.handleResolveExpiry)
		})

		r.Get("/reports/compliance", h.handleComplianceReport)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
