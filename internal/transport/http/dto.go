package httptransport

import (
	"time"

	"attesta/internal/claims"
	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/topics"
	"attesta/internal/verification"
	id "attesta/pkg/domain"
	"attesta/pkg/platform/audit"
)

// Timestamps cross the boundary as RFC 3339 strings; optional times are
// omitted when unset.

type topicResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Required          bool   `json:"required"`
	Category          string `json:"category"`
	DefaultExpiryDays int    `json:"defaultExpiryDays"`
	Renewable         bool   `json:"renewable"`
	ChainCode         uint64 `json:"chainCode,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

func toTopicResponse(def *topics.Definition) topicResponse {
	return topicResponse{
		ID:                def.ID.String(),
		Name:              def.Name,
		Description:       def.Description,
		Required:          def.Required,
		Category:          string(def.Category),
		DefaultExpiryDays: def.DefaultExpiryDays,
		Renewable:         def.Renewable,
		ChainCode:         def.ChainCode,
		CreatedAt:         formatTime(def.CreatedAt),
		UpdatedAt:         formatTime(def.UpdatedAt),
	}
}

type issuerResponse struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	AuthorizedClaims  []string          `json:"authorizedClaims"`
	Status            string            `json:"status"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	IssuedClaimsCount int               `json:"issuedClaimsCount"`
	ActiveClaimsCount int               `json:"activeClaimsCount"`
	RegisteredAt      string            `json:"registeredAt"`
	LastActivity      string            `json:"lastActivity"`
}

func toIssuerResponse(iss *issuers.TrustedIssuer) issuerResponse {
	authorized := make([]string, 0, len(iss.AuthorizedClaims))
	for _, t := range iss.Topics() {
		authorized = append(authorized, t.String())
	}
	return issuerResponse{
		ID:                iss.ID.String(),
		Name:              iss.Name,
		AuthorizedClaims:  authorized,
		Status:            string(iss.Status),
		Metadata:          iss.Metadata,
		IssuedClaimsCount: iss.IssuedClaimsCount,
		ActiveClaimsCount: iss.ActiveClaimsCount,
		RegisteredAt:      formatTime(iss.RegisteredAt),
		LastActivity:      formatTime(iss.LastActivity),
	}
}

type claimRefResponse struct {
	ClaimID   string  `json:"claimId"`
	Topic     string  `json:"topic"`
	IssuedAt  string  `json:"issuedAt"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
	Status    string  `json:"status"`
}

type identityResponse struct {
	Address        string             `json:"address"`
	UserID         string             `json:"userId"`
	IdentityKey    string             `json:"identityKey,omitempty"`
	Status         string             `json:"status"`
	Claims         []claimRefResponse `json:"claims"`
	TrustedIssuers []string           `json:"trustedIssuers,omitempty"`
	CreatedAt      string             `json:"createdAt"`
	VerifiedAt     *string            `json:"verifiedAt,omitempty"`
	LastUpdated    string             `json:"lastUpdated"`
}

func toIdentityResponse(rec *identity.Record) identityResponse {
	refs := make([]claimRefResponse, 0, len(rec.Claims))
	for _, ref := range rec.Claims {
		refs = append(refs, claimRefResponse{
			ClaimID:   ref.ClaimID.String(),
			Topic:     ref.Topic.String(),
			IssuedAt:  formatTime(ref.IssuedAt),
			ExpiresAt: formatTimePtr(ref.ExpiresAt),
			Status:    string(ref.Status),
		})
	}
	allowed := make([]string, 0, len(rec.TrustedIssuers))
	for _, iss := range rec.TrustedIssuers {
		allowed = append(allowed, iss.String())
	}
	return identityResponse{
		Address:        rec.Address.String(),
		UserID:         rec.UserID.String(),
		IdentityKey:    rec.IdentityKey,
		Status:         string(rec.Status),
		Claims:         refs,
		TrustedIssuers: allowed,
		CreatedAt:      formatTime(rec.CreatedAt),
		VerifiedAt:     formatTimePtr(rec.VerifiedAt),
		LastUpdated:    formatTime(rec.LastUpdated),
	}
}

type claimResponse struct {
	ID               string         `json:"id"`
	Address          string         `json:"address"`
	Topic            string         `json:"topic"`
	Issuer           string         `json:"issuer"`
	Data             map[string]any `json:"data,omitempty"`
	IssuedAt         string         `json:"issuedAt"`
	ExpiresAt        *string        `json:"expiresAt,omitempty"`
	Status           string         `json:"status"`
	VerificationHash string         `json:"verificationHash"`
	RevocationReason string         `json:"revocationReason,omitempty"`
	UpdatedAt        string         `json:"updatedAt"`
}

func toClaimResponse(c *claims.Claim) claimResponse {
	return claimResponse{
		ID:               c.ID.String(),
		Address:          c.Address.String(),
		Topic:            c.Topic.String(),
		Issuer:           c.Issuer.String(),
		Data:             c.Data,
		IssuedAt:         formatTime(c.IssuedAt),
		ExpiresAt:        formatTimePtr(c.ExpiresAt),
		Status:           string(c.Status),
		VerificationHash: c.VerificationHash,
		RevocationReason: c.RevocationReason,
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

type verifyIdentityResponse struct {
	Address       string             `json:"address"`
	IsVerified    bool               `json:"isVerified"`
	Identity      *identityResponse  `json:"identity,omitempty"`
	MissingClaims []string           `json:"missingClaims"`
	ExpiredClaims []string           `json:"expiredClaims"`
	ExpiringSoon  map[string]float64 `json:"expiringSoonSeconds,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	CheckedAt     string             `json:"checkedAt"`
}

func toVerifyIdentityResponse(res *verification.Result) verifyIdentityResponse {
	out := verifyIdentityResponse{
		Address:       res.Address.String(),
		IsVerified:    res.IsVerified,
		MissingClaims: topicStrings(res.MissingClaims),
		ExpiredClaims: topicStrings(res.ExpiredClaims),
		Reason:        res.Reason,
		CheckedAt:     formatTime(res.CheckedAt),
	}
	if res.Identity != nil {
		rec := toIdentityResponse(res.Identity)
		out.Identity = &rec
	}
	if len(res.ExpiringSoon) > 0 {
		out.ExpiringSoon = make(map[string]float64, len(res.ExpiringSoon))
		for topic, remaining := range res.ExpiringSoon {
			out.ExpiringSoon[topic.String()] = remaining.Seconds()
		}
	}
	return out
}

type verifyClaimResponse struct {
	ClaimID string         `json:"claimId"`
	Valid   bool           `json:"valid"`
	Claim   *claimResponse `json:"claim,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

func toVerifyClaimResponse(check *verification.ClaimCheck) verifyClaimResponse {
	out := verifyClaimResponse{
		ClaimID: check.ClaimID.String(),
		Valid:   check.Valid,
		Reason:  check.Reason,
	}
	if check.Claim != nil {
		claim := toClaimResponse(check.Claim)
		out.Claim = &claim
	}
	return out
}

type auditEventResponse struct {
	Operation string            `json:"operation"`
	Category  string            `json:"category"`
	Timestamp string            `json:"timestamp"`
	Address   string            `json:"address,omitempty"`
	ClaimID   string            `json:"claimId,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Issuer    string            `json:"issuer,omitempty"`
	Operator  string            `json:"operator,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Changes   map[string]string `json:"changes,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func toAuditEventResponse(e audit.Event) auditEventResponse {
	out := auditEventResponse{
		Operation: string(e.Operation),
		Category:  string(e.Operation.Category()),
		Timestamp: formatTime(e.Timestamp),
		Address:   e.Address.String(),
		Topic:     e.Topic.String(),
		Issuer:    e.Issuer.String(),
		Operator:  e.Operator,
		Reason:    e.Reason,
		Changes:   e.Changes,
		RequestID: e.RequestID,
	}
	if !e.ClaimID.IsNil() {
		out.ClaimID = e.ClaimID.String()
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func topicStrings(ids []id.TopicID) []string {
	out := make([]string, 0, len(ids))
	for _, t := range ids {
		out = append(out, t.String())
	}
	return out
}
