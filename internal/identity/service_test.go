package identity

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
	testAddress = id.Address("0xAbCd000000000000000000000000000000000001")
	kycTopic    = id.TopicID("KYC_APPROVED")
)

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.registry, err = New(NewInMemoryStore())
	s.Require().NoError(err)
}

func (s *RegistrySuite) register(addr id.Address, user id.UserID) *Record {
	record, err := s.registry.RegisterIdentity(s.ctx, addr, user, "", nil)
	s.Require().NoError(err)
	return record
}

func (s *RegistrySuite) kycRef(expiresAt *time.Time) ClaimReference {
	return ClaimReference{
		ClaimID:   id.NewClaimID(),
		Topic:     kycTopic,
		IssuedAt:  s.now,
		ExpiresAt: expiresAt,
		Status:    id.ClaimStatusActive,
	}
}

func (s *RegistrySuite) TestRegisterIdentity() {
	s.Run("starts pending with no claims", func() {
		record := s.register(testAddress, "user-1")
		s.Equal(StatusPending, record.Status)
		s.Empty(record.Claims)
		s.Nil(record.VerifiedAt)
		s.Equal(s.now, record.CreatedAt)
	})

	s.Run("registration is not idempotent", func() {
		_, err := s.registry.RegisterIdentity(s.ctx, testAddress, "user-1", "", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects missing address or user", func() {
		_, err := s.registry.RegisterIdentity(s.ctx, "", "user-2", "", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.registry.RegisterIdentity(s.ctx, id.Address("0x02"), "", "", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestBatchRegister() {
	s.register(testAddress, "user-1")

	results := s.registry.BatchRegister(s.ctx, []RegisterItem{
		{Address: id.Address("0xAbCd000000000000000000000000000000000002"), UserID: "user-2"},
		{Address: testAddress, UserID: "user-1"}, // duplicate
		{Address: id.Address("0xAbCd000000000000000000000000000000000003"), UserID: "user-3"},
	})
	s.Require().Len(results, 3)

	s.NoError(results[0].Err)
	s.NotNil(results[0].Record)

	s.Require().Error(results[1].Err)
	s.True(dErrors.HasCode(results[1].Err, dErrors.CodeConflict))

	s.NoError(results[2].Err)

	// Successes survive the failed sibling.
	records, err := s.registry.ListIdentities(s.ctx)
	s.Require().NoError(err)
	s.Len(records, 3)
}

func (s *RegistrySuite) TestAppendClaimRef() {
	s.register(testAddress, "user-1")

	s.Run("required topic auto-promotes pending to verified", func() {
		record, err := s.registry.AppendClaimRef(s.ctx, testAddress, s.kycRef(nil), true)
		s.Require().NoError(err)
		s.Equal(StatusVerified, record.Status)
		s.Require().NotNil(record.VerifiedAt)
		s.Equal(s.now, *record.VerifiedAt)
		s.Len(record.Claims, 1)
	})

	s.Run("further refs keep the first VerifiedAt", func() {
		laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		record, err := s.registry.AppendClaimRef(laterCtx, testAddress, s.kycRef(nil), true)
		s.Require().NoError(err)
		s.Equal(StatusVerified, record.Status)
		s.Equal(s.now, *record.VerifiedAt)
		s.Len(record.Claims, 2)
	})

	s.Run("revoked identity refuses new refs", func() {
		_, err := s.registry.UpdateStatus(s.ctx, testAddress, StatusRevoked, "fraud")
		s.Require().NoError(err)

		_, err = s.registry.AppendClaimRef(s.ctx, testAddress, s.kycRef(nil), true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *RegistrySuite) TestAppendClaimRefNonRequired() {
	s.register(testAddress, "user-1")

	record, err := s.registry.AppendClaimRef(s.ctx, testAddress, ClaimReference{
		ClaimID:  id.NewClaimID(),
		Topic:    id.TopicID("ACCREDITED_INVESTOR"),
		IssuedAt: s.now,
		Status:   id.ClaimStatusActive,
	}, false)
	s.Require().NoError(err)
	s.Equal(StatusPending, record.Status)
}

func (s *RegistrySuite) TestUpdateStatus() {
	s.register(testAddress, "user-1")

	s.Run("manual promotion sets VerifiedAt", func() {
		record, err := s.registry.UpdateStatus(s.ctx, testAddress, StatusVerified, "manual review passed")
		s.Require().NoError(err)
		s.Equal(StatusVerified, record.Status)
		s.Require().NotNil(record.VerifiedAt)
	})

	s.Run("revocation is terminal", func() {
		_, err := s.registry.UpdateStatus(s.ctx, testAddress, StatusRevoked, "sanctions match")
		s.Require().NoError(err)

		_, err = s.registry.UpdateStatus(s.ctx, testAddress, StatusVerified, "appeal")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown identity", func() {
		_, err := s.registry.UpdateStatus(s.ctx, id.Address("0xdead"), StatusVerified, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrySuite) TestSyncClaimRef() {
	s.register(testAddress, "user-1")
	ref := s.kycRef(nil)
	_, err := s.registry.AppendClaimRef(s.ctx, testAddress, ref, true)
	s.Require().NoError(err)

	s.Run("mirrors a status change into the projection", func() {
		err := s.registry.SyncClaimRef(s.ctx, testAddress, ref.ClaimID, id.ClaimStatusRevoked, nil)
		s.Require().NoError(err)

		record, err := s.registry.GetIdentity(s.ctx, testAddress)
		s.Require().NoError(err)
		s.Equal(id.ClaimStatusRevoked, record.Claims[0].Status)
	})

	s.Run("missing reference is tolerated", func() {
		err := s.registry.SyncClaimRef(s.ctx, testAddress, id.NewClaimID(), id.ClaimStatusExpired, nil)
		s.NoError(err)
	})
}

func (s *RegistrySuite) TestReevaluateAfterRevocation() {
	s.register(testAddress, "user-1")
	ref := s.kycRef(nil)
	_, err := s.registry.AppendClaimRef(s.ctx, testAddress, ref, true)
	s.Require().NoError(err)

	s.Run("demotes when required coverage is gone", func() {
		s.Require().NoError(s.registry.SyncClaimRef(s.ctx, testAddress, ref.ClaimID, id.ClaimStatusRevoked, nil))

		record, err := s.registry.ReevaluateAfterRevocation(s.ctx, testAddress, []id.TopicID{kycTopic})
		s.Require().NoError(err)
		s.Equal(StatusPending, record.Status)
	})

	s.Run("keeps verified while another active claim covers the topic", func() {
		second := s.kycRef(nil)
		_, err := s.registry.AppendClaimRef(s.ctx, testAddress, second, true)
		s.Require().NoError(err)

		third := s.kycRef(nil)
		_, err = s.registry.AppendClaimRef(s.ctx, testAddress, third, true)
		s.Require().NoError(err)

		s.Require().NoError(s.registry.SyncClaimRef(s.ctx, testAddress, second.ClaimID, id.ClaimStatusRevoked, nil))

		record, err := s.registry.ReevaluateAfterRevocation(s.ctx, testAddress, []id.TopicID{kycTopic})
		s.Require().NoError(err)
		s.Equal(StatusVerified, record.Status)
	})

	s.Run("expired references do not count as coverage", func() {
		record, err := s.registry.GetIdentity(s.ctx, testAddress)
		s.Require().NoError(err)
		for _, ref := range record.Claims {
			if ref.Status == id.ClaimStatusActive {
				s.Require().NoError(s.registry.SyncClaimRef(s.ctx, testAddress, ref.ClaimID, id.ClaimStatusRevoked, nil))
			}
		}

		past := s.now.Add(-time.Hour)
		expired := s.kycRef(&past)
		_, err = s.registry.AppendClaimRef(s.ctx, testAddress, expired, true)
		s.Require().NoError(err)

		out, err := s.registry.ReevaluateAfterRevocation(s.ctx, testAddress, []id.TopicID{kycTopic})
		s.Require().NoError(err)
		s.Equal(StatusPending, out.Status)
	})
}

func (s *RegistrySuite) TestCountByStatus() {
	s.register(testAddress, "user-1")
	s.register(id.Address("0xAbCd000000000000000000000000000000000002"), "user-2")
	_, err := s.registry.UpdateStatus(s.ctx, id.Address("0xAbCd000000000000000000000000000000000002"), StatusVerified, "")
	s.Require().NoError(err)

	counts, err := s.registry.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[StatusPending])
	s.Equal(1, counts[StatusVerified])
}
