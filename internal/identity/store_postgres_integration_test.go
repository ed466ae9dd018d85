//go:build integration

package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/identity"
	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *identity.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = identity.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"claims", "identities", "audit_events", "outbox"))
}

func (s *PostgresStoreSuite) newRecord(addr id.Address) *identity.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, err := identity.NewRecord(addr, "user-1", "did:attesta:1", now)
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	addr := id.Address("0x1111111111111111111111111111111111111111")
	rec := s.newRecord(addr)
	rec.TrustedIssuers = []id.IssuerID{"sumsub"}

	s.Require().NoError(s.store.Create(ctx, rec))

	found, err := s.store.Get(ctx, addr)
	s.Require().NoError(err)
	s.Equal(rec.UserID, found.UserID)
	s.Equal(identity.StatusPending, found.Status)
	s.Equal([]id.IssuerID{"sumsub"}, found.TrustedIssuers)
	s.Empty(found.Claims)
	s.Nil(found.VerifiedAt)
}

func (s *PostgresStoreSuite) TestCreateConflict() {
	ctx := context.Background()
	addr := id.Address("0x2222222222222222222222222222222222222222")
	s.Require().NoError(s.store.Create(ctx, s.newRecord(addr)))

	err := s.store.Create(ctx, s.newRecord(addr))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetUnknown() {
	_, err := s.store.Get(context.Background(),
		id.Address("0x9999999999999999999999999999999999999999"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecutePersistsProjection() {
	ctx := context.Background()
	addr := id.Address("0x3333333333333333333333333333333333333333")
	s.Require().NoError(s.store.Create(ctx, s.newRecord(addr)))

	now := time.Now().UTC().Truncate(time.Microsecond)
	claimID := id.NewClaimID()
	_, err := s.store.Execute(ctx, addr,
		func(*identity.Record) error { return nil },
		func(rec *identity.Record) {
			rec.Claims = append(rec.Claims, identity.ClaimReference{
				ClaimID:  claimID,
				Topic:    "KYC_APPROVED",
				IssuedAt: now,
				Status:   id.ClaimStatusActive,
			})
			rec.ApplySetStatus(identity.StatusVerified, now)
		})
	s.Require().NoError(err)

	found, err := s.store.Get(ctx, addr)
	s.Require().NoError(err)
	s.Equal(identity.StatusVerified, found.Status)
	s.Require().NotNil(found.VerifiedAt)
	s.Require().Len(found.Claims, 1)
	s.Equal(claimID, found.Claims[0].ClaimID)
	s.Equal(id.TopicID("KYC_APPROVED"), found.Claims[0].Topic)
}

// TestExecuteSerializesAppends verifies the row lock: concurrent appends to
// the same identity must all survive.
func (s *PostgresStoreSuite) TestExecuteSerializesAppends() {
	ctx := context.Background()
	addr := id.Address("0x4444444444444444444444444444444444444444")
	s.Require().NoError(s.store.Create(ctx, s.newRecord(addr)))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, addr,
				func(*identity.Record) error { return nil },
				func(rec *identity.Record) {
					rec.Claims = append(rec.Claims, identity.ClaimReference{
						ClaimID:  id.NewClaimID(),
						Topic:    "KYC_APPROVED",
						IssuedAt: time.Now().UTC(),
						Status:   id.ClaimStatusActive,
					})
				})
			s.NoError(err)
		}()
	}
	wg.Wait()

	found, err := s.store.Get(ctx, addr)
	s.Require().NoError(err)
	s.Len(found.Claims, writers)
}

func (s *PostgresStoreSuite) TestCountByStatus() {
	ctx := context.Background()
	for i, addr := range []id.Address{
		"0x5555555555555555555555555555555555555551",
		"0x5555555555555555555555555555555555555552",
		"0x5555555555555555555555555555555555555553",
	} {
		rec := s.newRecord(addr)
		if i == 0 {
			rec.Status = identity.StatusVerified
		}
		s.Require().NoError(s.store.Create(ctx, rec))
	}

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[identity.StatusVerified])
	s.Equal(2, counts[identity.StatusPending])
}
