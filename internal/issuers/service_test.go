package issuers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

const (
	kycTopic    = id.TopicID("KYC_APPROVED")
	accredTopic = id.TopicID("ACCREDITED_INVESTOR")
)

type DirectorySuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	directory *Directory
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.directory, err = New(NewInMemoryStore())
	s.Require().NoError(err)
}

func (s *DirectorySuite) register(issuerID id.IssuerID, authorized ...id.TopicID) *TrustedIssuer {
	issuer, err := s.directory.RegisterIssuer(s.ctx, issuerID, string(issuerID), authorized, nil)
	s.Require().NoError(err)
	return issuer
}

func (s *DirectorySuite) TestRegisterIssuer() {
	s.Run("registers active with the authorized set", func() {
		issuer := s.register("sumsub", kycTopic)
		s.Equal(StatusActive, issuer.Status)
		s.Contains(issuer.AuthorizedClaims, kycTopic)
		s.Equal(s.now, issuer.RegisteredAt)
	})

	s.Run("duplicate registration conflicts", func() {
		_, err := s.directory.RegisterIssuer(s.ctx, "sumsub", "SumSub", nil, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects missing id or name", func() {
		_, err := s.directory.RegisterIssuer(s.ctx, "", "Nameless", nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.directory.RegisterIssuer(s.ctx, "onfido", "", nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DirectorySuite) TestAuthorization() {
	s.register("sumsub", kycTopic)

	s.Run("grant extends the authorized set", func() {
		issuer, err := s.directory.Authorize(s.ctx, "sumsub", accredTopic)
		s.Require().NoError(err)
		s.Contains(issuer.AuthorizedClaims, accredTopic)

		ok, err := s.directory.IsAuthorized(s.ctx, "sumsub", accredTopic)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("grant is idempotent", func() {
		issuer, err := s.directory.Authorize(s.ctx, "sumsub", accredTopic)
		s.Require().NoError(err)
		s.Len(issuer.AuthorizedClaims, 2)
	})

	s.Run("revoke shrinks the authorized set", func() {
		issuer, err := s.directory.RevokeAuthorization(s.ctx, "sumsub", accredTopic)
		s.Require().NoError(err)
		s.NotContains(issuer.AuthorizedClaims, accredTopic)

		ok, err := s.directory.IsAuthorized(s.ctx, "sumsub", accredTopic)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown issuer", func() {
		_, err := s.directory.Authorize(s.ctx, "ghost", kycTopic)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DirectorySuite) TestSetStatus() {
	s.register("sumsub", kycTopic)

	s.Run("suspension pauses authorization checks", func() {
		issuer, err := s.directory.SetStatus(s.ctx, "sumsub", StatusSuspended)
		s.Require().NoError(err)
		s.Equal(StatusSuspended, issuer.Status)

		ok, err := s.directory.IsAuthorized(s.ctx, "sumsub", kycTopic)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("suspension is reversible", func() {
		issuer, err := s.directory.SetStatus(s.ctx, "sumsub", StatusActive)
		s.Require().NoError(err)
		s.Equal(StatusActive, issuer.Status)

		ok, err := s.directory.IsAuthorized(s.ctx, "sumsub", kycTopic)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("revocation is terminal", func() {
		_, err := s.directory.SetStatus(s.ctx, "sumsub", StatusRevoked)
		s.Require().NoError(err)

		_, err = s.directory.SetStatus(s.ctx, "sumsub", StatusActive)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("revoked issuers cannot receive authorizations", func() {
		_, err := s.directory.Authorize(s.ctx, "sumsub", accredTopic)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("authorized set survives revocation for audit history", func() {
		issuer, err := s.directory.GetIssuer(s.ctx, "sumsub")
		s.Require().NoError(err)
		s.Contains(issuer.AuthorizedClaims, kycTopic)
	})
}

func (s *DirectorySuite) TestIsAuthorizedUnknownIssuer() {
	ok, err := s.directory.IsAuthorized(s.ctx, "ghost", kycTopic)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *DirectorySuite) TestIssuanceCounters() {
	s.register("sumsub", kycTopic)

	s.Require().NoError(s.directory.RecordIssuance(s.ctx, "sumsub"))
	s.Require().NoError(s.directory.RecordIssuance(s.ctx, "sumsub"))
	s.Require().NoError(s.directory.RecordClaimClosed(s.ctx, "sumsub"))

	issuer, err := s.directory.GetIssuer(s.ctx, "sumsub")
	s.Require().NoError(err)
	s.Equal(2, issuer.IssuedClaimsCount)
	s.Equal(1, issuer.ActiveClaimsCount)

	// The active counter never goes negative even if close events repeat.
	s.Require().NoError(s.directory.RecordClaimClosed(s.ctx, "sumsub"))
	s.Require().NoError(s.directory.RecordClaimClosed(s.ctx, "sumsub"))
	issuer, err = s.directory.GetIssuer(s.ctx, "sumsub")
	s.Require().NoError(err)
	s.Zero(issuer.ActiveClaimsCount)
}
