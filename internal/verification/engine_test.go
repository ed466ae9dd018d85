package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/claims"
	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/topics"
	id "attesta/pkg/domain"
	"attesta/pkg/requestcontext"
)

const (
	testAddress = id.Address("0x1111111111111111111111111111111111111111")
	testIssuer  = id.IssuerID("sumsub")
	kycTopic    = id.TopicID("KYC_APPROVED")
)

type EngineSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	catalog    *topics.Registry
	directory  *issuers.Directory
	identities *identity.Registry
	ledger     *claims.Ledger
	engine     *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.catalog, err = topics.New(topics.NewInMemoryStore())
	s.Require().NoError(err)
	s.Require().NoError(s.catalog.Seed(s.ctx))

	s.directory, err = issuers.New(issuers.NewInMemoryStore())
	s.Require().NoError(err)

	s.identities, err = identity.New(identity.NewInMemoryStore())
	s.Require().NoError(err)

	s.ledger, err = claims.New(claims.NewInMemoryStore(), s.directory, s.catalog, s.identities)
	s.Require().NoError(err)

	s.engine = New(s.identities, s.ledger, s.catalog)
}

func (s *EngineSuite) registerIdentity() {
	_, err := s.identities.RegisterIdentity(s.ctx, testAddress, "user-1", "did:attesta:1", nil)
	s.Require().NoError(err)
}

func (s *EngineSuite) registerIssuer(authorized ...id.TopicID) {
	_, err := s.directory.RegisterIssuer(s.ctx, testIssuer, "SumSub", authorized, nil)
	s.Require().NoError(err)
}

func (s *EngineSuite) issueClaim(topic id.TopicID, expiresAt *time.Time) *claims.Claim {
	claim, err := s.ledger.IssueClaim(s.ctx, claims.IssueRequest{
		Address:   testAddress,
		Topic:     topic,
		Issuer:    testIssuer,
		ExpiresAt: expiresAt,
	})
	s.Require().NoError(err)
	return claim
}

// at returns a request context pinned to a different evaluation time.
func (s *EngineSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EngineSuite) TestVerifyIdentity() {
	s.Run("unregistered address is not verified", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Equal("identity not registered", res.Reason)
		s.Nil(res.Identity)
	})

	s.registerIdentity()
	s.registerIssuer(kycTopic)

	s.Run("identity without claims reports missing required topics", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Contains(res.MissingClaims, kycTopic)
		s.Empty(res.ExpiredClaims)
		s.Equal("missing required claims", res.Reason)
	})

	s.Run("active required claim verifies and auto-promotes", func() {
		s.issueClaim(kycTopic, nil)

		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.True(res.IsVerified)
		s.Empty(res.MissingClaims)
		s.Require().NotNil(res.Identity)
		s.Equal(identity.StatusVerified, res.Identity.Status)
	})

	s.Run("custom required set is evaluated instead of the default", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, []id.TopicID{"ACCREDITED_INVESTOR"})
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Contains(res.MissingClaims, id.TopicID("ACCREDITED_INVESTOR"))
	})

	s.Run("empty custom required set verifies trivially", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, []id.TopicID{})
		s.Require().NoError(err)
		s.True(res.IsVerified)
	})
}

func (s *EngineSuite) TestVerifyIdentityAfterRevocation() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)
	claim := s.issueClaim(kycTopic, nil)

	res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
	s.Require().NoError(err)
	s.Require().True(res.IsVerified)

	_, err = s.ledger.RevokeClaim(s.ctx, claim.ID, "document forgery")
	s.Require().NoError(err)

	s.Run("revoked claim makes the topic missing again", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Contains(res.MissingClaims, kycTopic)
		s.NotContains(res.ExpiredClaims, kycTopic)
	})

	s.Run("revocation demoted the identity to pending", func() {
		rec, err := s.identities.GetIdentity(s.ctx, testAddress)
		s.Require().NoError(err)
		s.Equal(identity.StatusPending, rec.Status)
	})
}

func (s *EngineSuite) TestVerifyIdentityExpiry() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)
	expiry := s.now.Add(24 * time.Hour)
	s.issueClaim(kycTopic, &expiry)

	s.Run("claim counts while unexpired", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.True(res.IsVerified)
	})

	s.Run("expiry is derived from the clock without a status write", func() {
		later := s.at(s.now.Add(48 * time.Hour))
		res, err := s.engine.VerifyIdentity(later, testAddress, nil)
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Contains(res.MissingClaims, kycTopic)
		s.Contains(res.ExpiredClaims, kycTopic)
	})
}

func (s *EngineSuite) TestVerifyIdentityRevokedIdentity() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)
	s.issueClaim(kycTopic, nil)

	_, err := s.identities.UpdateStatus(s.ctx, testAddress, identity.StatusRevoked, "compliance hold")
	s.Require().NoError(err)

	res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
	s.Require().NoError(err)
	s.False(res.IsVerified)
	s.Equal("identity is revoked", res.Reason)
}

func (s *EngineSuite) TestExpiryWarning() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)
	expiry := s.now.Add(10 * 24 * time.Hour)
	s.issueClaim(kycTopic, &expiry)

	engine := New(s.identities, s.ledger, s.catalog, WithExpiryWarning(30*24*time.Hour))

	res, err := engine.VerifyIdentity(s.ctx, testAddress, nil)
	s.Require().NoError(err)
	s.True(res.IsVerified)
	s.Equal(10*24*time.Hour, res.ExpiringSoon[kycTopic])
}

func (s *EngineSuite) TestValidityHorizon() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)

	s.Run("missing claims leave the horizon unset", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.False(res.IsVerified)
		s.Nil(res.ValidUntil)
	})

	expiry := s.now.Add(24 * time.Hour)
	s.issueClaim(kycTopic, &expiry)

	s.Run("positive verdict carries the backing claim's expiry", func() {
		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, nil)
		s.Require().NoError(err)
		s.True(res.IsVerified)
		s.Require().NotNil(res.ValidUntil)
		s.Equal(expiry, *res.ValidUntil)
		s.False(res.Stale(s.now))
		s.True(res.Stale(expiry))
	})

	s.Run("non-expiring claims leave the horizon unset", func() {
		spvTopic := id.TopicID("AUTHORIZED_SPV")
		_, err := s.directory.Authorize(s.ctx, testIssuer, spvTopic)
		s.Require().NoError(err)
		s.issueClaim(spvTopic, nil)

		res, err := s.engine.VerifyIdentity(s.ctx, testAddress, []id.TopicID{spvTopic})
		s.Require().NoError(err)
		s.True(res.IsVerified)
		s.Nil(res.ValidUntil)
	})
}

func (s *EngineSuite) TestVerifyClaim() {
	s.registerIdentity()
	s.registerIssuer(kycTopic)

	s.Run("unknown claim reports not found", func() {
		check, err := s.engine.VerifyClaim(s.ctx, id.NewClaimID())
		s.Require().NoError(err)
		s.False(check.Valid)
		s.Equal("claim not found", check.Reason)
	})

	expiry := s.now.Add(24 * time.Hour)
	claim := s.issueClaim(kycTopic, &expiry)

	s.Run("active claim is valid", func() {
		check, err := s.engine.VerifyClaim(s.ctx, claim.ID)
		s.Require().NoError(err)
		s.True(check.Valid)
		s.Empty(check.Reason)
	})

	s.Run("expired claim carries the expiry reason", func() {
		later := s.at(s.now.Add(48 * time.Hour))
		check, err := s.engine.VerifyClaim(later, claim.ID)
		s.Require().NoError(err)
		s.False(check.Valid)
		s.Equal("expired", check.Reason)
	})

	s.Run("revoked claim carries the revocation reason", func() {
		_, err := s.ledger.RevokeClaim(s.ctx, claim.ID, "issuer error")
		s.Require().NoError(err)

		check, err := s.engine.VerifyClaim(s.ctx, claim.ID)
		s.Require().NoError(err)
		s.False(check.Valid)
		s.Equal("revoked: issuer error", check.Reason)
	})
}
