//go:build integration

package claims_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/claims"
	"attesta/internal/identity"
	"attesta/internal/topics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/testutil/containers"
)

const testAddr = id.Address("0x1111111111111111111111111111111111111111")

type ClaimsPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *claims.PostgresStore
}

func TestClaimsPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ClaimsPostgresSuite))
}

func (s *ClaimsPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = claims.NewPostgresStore(s.postgres.DB)
}

// SetupTest reseeds the referenced identity and topic rows after truncation.
func (s *ClaimsPostgresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"claims", "identities", "claim_topics"))

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, err := identity.NewRecord(testAddr, "user-1", "", now)
	s.Require().NoError(err)
	s.Require().NoError(identity.NewPostgresStore(s.postgres.DB).Create(ctx, rec))

	topicStore := topics.NewPostgresStore(s.postgres.DB)
	for _, def := range topics.Defaults(now) {
		s.Require().NoError(topicStore.Create(ctx, def))
	}
}

func (s *ClaimsPostgresSuite) newClaim(topic id.TopicID, issuedAt time.Time) *claims.Claim {
	return &claims.Claim{
		ID:               id.NewClaimID(),
		Address:          testAddr,
		Topic:            topic,
		Issuer:           "sumsub",
		Data:             map[string]any{"provider": "sumsub", "level": "full"},
		IssuedAt:         issuedAt,
		Status:           id.ClaimStatusActive,
		VerificationHash: "0xabc",
		UpdatedAt:        issuedAt,
	}
}

func (s *ClaimsPostgresSuite) TestCreateAndGet() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	claim := s.newClaim("KYC_APPROVED", now)
	expiry := now.Add(24 * time.Hour)
	claim.ExpiresAt = &expiry

	s.Require().NoError(s.store.Create(ctx, claim))

	found, err := s.store.Get(ctx, claim.ID)
	s.Require().NoError(err)
	s.Equal(claim.Address, found.Address)
	s.Equal(claim.Topic, found.Topic)
	s.Equal("sumsub", found.Issuer.String())
	s.Equal("full", found.Data["level"])
	s.Require().NotNil(found.ExpiresAt)
	s.True(found.ExpiresAt.Equal(expiry))
}

func (s *ClaimsPostgresSuite) TestGetUnknown() {
	_, err := s.store.Get(context.Background(), id.NewClaimID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ClaimsPostgresSuite) TestListByAddressOrdersByIssuance() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	second := s.newClaim("ACCREDITED_INVESTOR", base.Add(time.Hour))
	first := s.newClaim("KYC_APPROVED", base)
	s.Require().NoError(s.store.Create(ctx, second))
	s.Require().NoError(s.store.Create(ctx, first))

	list, err := s.store.ListByAddress(ctx, testAddr)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)
}

func (s *ClaimsPostgresSuite) TestExecuteRevocation() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	claim := s.newClaim("KYC_APPROVED", now)
	s.Require().NoError(s.store.Create(ctx, claim))

	updated, err := s.store.Execute(ctx, claim.ID,
		func(c *claims.Claim) error { return c.CanRevoke("document forgery", now) },
		func(c *claims.Claim) { c.ApplyRevoke("document forgery", now) })
	s.Require().NoError(err)
	s.Equal(id.ClaimStatusRevoked, updated.Status)

	s.Run("validation failure leaves the row untouched", func() {
		_, err := s.store.Execute(ctx, claim.ID,
			func(c *claims.Claim) error { return c.CanRevoke("again", now) },
			func(c *claims.Claim) { c.ApplyRevoke("again", now) })
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		found, err := s.store.Get(ctx, claim.ID)
		s.Require().NoError(err)
		s.Equal("document forgery", found.RevocationReason)
	})
}

func (s *ClaimsPostgresSuite) TestDelete() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	claim := s.newClaim("KYC_APPROVED", now)
	s.Require().NoError(s.store.Create(ctx, claim))

	s.Require().NoError(s.store.Delete(ctx, claim.ID))

	_, err := s.store.Get(ctx, claim.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, claim.ID), sentinel.ErrNotFound)
}

func (s *ClaimsPostgresSuite) TestCountByStatus() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	active := s.newClaim("KYC_APPROVED", now)
	revoked := s.newClaim("ACCREDITED_INVESTOR", now)
	revoked.Status = id.ClaimStatusRevoked
	revoked.RevocationReason = "issuer error"
	s.Require().NoError(s.store.Create(ctx, active))
	s.Require().NoError(s.store.Create(ctx, revoked))

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[id.ClaimStatusActive])
	s.Equal(1, counts[id.ClaimStatusRevoked])
}
