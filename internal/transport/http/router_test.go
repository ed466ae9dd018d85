package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/admintoken"
	"attesta/internal/claims"
	"attesta/internal/compliance"
	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/platform/config"
	"attesta/internal/topics"
	"attesta/internal/verification"
	auditmem "attesta/pkg/platform/audit/store/memory"
	"attesta/pkg/requestcontext"
	"attesta/pkg/testutil"
)

const testAddress = "0x1111111111111111111111111111111111111111"

type RouterSuite struct {
	suite.Suite
	router http.Handler
	tokens *admintoken.Service
	auth   string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := requestcontext.WithTime(context.Background(), time.Now().UTC())

	catalog, err := topics.New(topics.NewInMemoryStore())
	s.Require().NoError(err)
	s.Require().NoError(catalog.Seed(ctx))

	directory, err := issuers.New(issuers.NewInMemoryStore())
	s.Require().NoError(err)

	identities, err := identity.New(identity.NewInMemoryStore())
	s.Require().NoError(err)

	ledger, err := claims.New(claims.NewInMemoryStore(), directory, catalog, identities)
	s.Require().NoError(err)

	auditStore := auditmem.New()
	verifier := verification.New(identities, ledger, catalog)
	reporter := compliance.New(identities, ledger, directory, catalog,
		config.DefaultScoreWeights(), compliance.WithAuditSource(auditStore))

	s.tokens = admintoken.New("router-test-key", "attesta-test")
	token, err := s.tokens.Generate("test-operator", "admin", time.Hour)
	s.Require().NoError(err)
	s.auth = "Bearer " + token

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(log, catalog, directory, identities, ledger, verifier, reporter, auditStore)
	s.router = NewRouter(handler, s.tokens)
}

func (s *RouterSuite) do(method, path string, body any) *struct {
	Code int
	JSON map[string]any
} {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if body == nil {
		req = testutil.NewRequest(s.T(), method, path)
	}
	req.Header.Set("Authorization", s.auth)
	rr := testutil.DoRequest(s.router, req)

	out := &struct {
		Code int
		JSON map[string]any
	}{Code: rr.Code}
	if rr.Body.Len() > 0 {
		var decoded any
		testutil.DecodeJSON(s.T(), rr, &decoded)
		if m, ok := decoded.(map[string]any); ok {
			out.JSON = m
		}
	}
	return out
}

func (s *RouterSuite) seedIssuerAndIdentity() {
	resp := s.do(http.MethodPost, "/admin/issuers", map[string]any{
		"id":               "sumsub",
		"name":             "SumSub",
		"authorizedClaims": []string{"KYC_APPROVED"},
	})
	s.Require().Equal(http.StatusCreated, resp.Code)

	resp = s.do(http.MethodPost, "/admin/identities", map[string]any{
		"address": testAddress,
		"userId":  "user-1",
	})
	s.Require().Equal(http.StatusCreated, resp.Code)
}

func (s *RouterSuite) issueKYC() string {
	resp := s.do(http.MethodPost, "/admin/claims", map[string]any{
		"address": testAddress,
		"topic":   "KYC_APPROVED",
		"issuer":  "sumsub",
	})
	s.Require().Equal(http.StatusCreated, resp.Code)
	return resp.JSON["id"].(string)
}

func (s *RouterSuite) TestHealth() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/healthz")
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *RouterSuite) TestAdminRequiresToken() {
	s.Run("missing token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/topics")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("garbage token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/topics")
		req.Header.Set("Authorization", "Bearer not.a.token")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("wrong signing key", func() {
		other := admintoken.New("different-key", "attesta-test")
		token, err := other.Generate("mallory", "admin", time.Hour)
		s.Require().NoError(err)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/topics")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *RouterSuite) TestVerifyEndpointIsPublic() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/verify/identities/"+testAddress)
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)

	var result map[string]any
	testutil.DecodeJSON(s.T(), rr, &result)
	s.Equal(false, result["isVerified"])
	s.Equal("identity not registered", result["reason"])
}

func (s *RouterSuite) TestTopicLifecycle() {
	s.Run("list includes the seeded catalog", func() {
		resp := s.do(http.MethodGet, "/admin/topics", nil)
		s.Equal(http.StatusOK, resp.Code)
	})

	s.Run("define and fetch", func() {
		resp := s.do(http.MethodPost, "/admin/topics", map[string]any{
			"id":                "JURISDICTION_EU",
			"name":              "EU jurisdiction cleared",
			"category":          "compliance",
			"defaultExpiryDays": 180,
		})
		s.Require().Equal(http.StatusCreated, resp.Code)
		s.Equal("JURISDICTION_EU", resp.JSON["id"])

		resp = s.do(http.MethodGet, "/admin/topics/JURISDICTION_EU", nil)
		s.Equal(http.StatusOK, resp.Code)
		s.Equal(float64(180), resp.JSON["defaultExpiryDays"])
	})

	s.Run("patch", func() {
		resp := s.do(http.MethodPatch, "/admin/topics/JURISDICTION_EU", map[string]any{
			"defaultExpiryDays": 90,
		})
		s.Equal(http.StatusOK, resp.Code)
		s.Equal(float64(90), resp.JSON["defaultExpiryDays"])
	})

	s.Run("unknown topic is 404", func() {
		resp := s.do(http.MethodGet, "/admin/topics/NOPE", nil)
		s.Equal(http.StatusNotFound, resp.Code)
	})
}

func (s *RouterSuite) TestClaimFlow() {
	s.seedIssuerAndIdentity()
	claimID := s.issueKYC()

	s.Run("identity was promoted", func() {
		resp := s.do(http.MethodGet, "/admin/identities/"+testAddress, nil)
		s.Require().Equal(http.StatusOK, resp.Code)
		s.Equal("verified", resp.JSON["status"])
	})

	s.Run("verification passes", func() {
		resp := s.do(http.MethodGet, "/verify/identities/"+testAddress, nil)
		s.Require().Equal(http.StatusOK, resp.Code)
		s.Equal(true, resp.JSON["isVerified"])
	})

	s.Run("claim verification passes", func() {
		resp := s.do(http.MethodGet, "/verify/claims/"+claimID, nil)
		s.Require().Equal(http.StatusOK, resp.Code)
		s.Equal(true, resp.JSON["valid"])
	})

	s.Run("revocation demotes and fails verification", func() {
		resp := s.do(http.MethodPost, fmt.Sprintf("/admin/claims/%s/revoke", claimID), map[string]any{
			"reason": "document forgery detected",
		})
		s.Require().Equal(http.StatusOK, resp.Code)
		s.Equal("revoked", resp.JSON["status"])

		resp = s.do(http.MethodGet, "/verify/identities/"+testAddress, nil)
		s.Require().Equal(http.StatusOK, resp.Code)
		s.Equal(false, resp.JSON["isVerified"])
	})

	s.Run("double revoke is a conflict of state", func() {
		resp := s.do(http.MethodPost, fmt.Sprintf("/admin/claims/%s/revoke", claimID), map[string]any{
			"reason": "again",
		})
		s.Equal(http.StatusConflict, resp.Code)
	})

	s.Run("audit trail recorded the flow", func() {
		resp := s.do(http.MethodGet, fmt.Sprintf("/admin/identities/%s/audit", testAddress), nil)
		s.Equal(http.StatusOK, resp.Code)
	})
}

func (s *RouterSuite) TestUnauthorizedIssuerCreatesNothing() {
	s.seedIssuerAndIdentity()

	resp := s.do(http.MethodPost, "/admin/claims", map[string]any{
		"address": testAddress,
		"topic":   "ACCREDITED_INVESTOR",
		"issuer":  "sumsub",
	})
	s.Equal(http.StatusForbidden, resp.Code)

	listResp := s.do(http.MethodGet, fmt.Sprintf("/admin/identities/%s/claims", testAddress), nil)
	s.Equal(http.StatusOK, listResp.Code)
}

func (s *RouterSuite) TestBatchRegister() {
	resp := s.do(http.MethodPost, "/admin/identities/batch", map[string]any{
		"identities": []map[string]any{
			{"address": testAddress, "userId": "user-1"},
			{"address": testAddress, "userId": "user-1"}, // duplicate
			{"address": "not-an-address", "userId": "user-2"},
		},
	})
	s.Require().Equal(http.StatusMultiStatus, resp.Code)
	s.Equal(float64(1), resp.JSON["succeeded"])
	s.Equal(float64(2), resp.JSON["failed"])
}

func (s *RouterSuite) TestComplianceReport() {
	s.seedIssuerAndIdentity()
	s.issueKYC()

	resp := s.do(http.MethodGet, "/admin/reports/compliance", nil)
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal(float64(1), resp.JSON["totalIdentities"])
	s.Equal(float64(100), resp.JSON["complianceScore"])
}

func (s *RouterSuite) TestVerifyWithCustomTopics() {
	s.seedIssuerAndIdentity()
	s.issueKYC()

	req := testutil.NewRequest(s.T(), http.MethodGet,
		"/verify/identities/"+testAddress+"?topics=KYC_APPROVED,ACCREDITED_INVESTOR")
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code)

	var result map[string]any
	testutil.DecodeJSON(s.T(), rr, &result)
	s.Equal(false, result["isVerified"])
	s.Contains(result["missingClaims"], "ACCREDITED_INVESTOR")
}
