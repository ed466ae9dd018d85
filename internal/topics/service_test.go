package topics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
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
	s.Require().NoError(s.registry.Seed(s.ctx))
}

func (s *RegistrySuite) TestSeed() {
	s.Run("installs the built-in catalog", func() {
		defs, err := s.registry.ListTopics(s.ctx)
		s.Require().NoError(err)
		s.Len(defs, 5)

		kyc, err := s.registry.GetTopic(s.ctx, id.TopicID("KYC_APPROVED"))
		s.Require().NoError(err)
		s.True(kyc.Required)
		s.Equal(365, kyc.DefaultExpiryDays)
		s.True(kyc.Renewable)
	})

	s.Run("is idempotent", func() {
		s.Require().NoError(s.registry.Seed(s.ctx))
		defs, err := s.registry.ListTopics(s.ctx)
		s.Require().NoError(err)
		s.Len(defs, 5)
	})

	s.Run("only KYC is in the required baseline", func() {
		required, err := s.registry.ListRequiredTopics(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(required, 1)
		s.Equal(id.TopicID("KYC_APPROVED"), required[0].ID)
	})
}

func (s *RegistrySuite) TestDefineTopic() {
	s.Run("creates a custom topic", func() {
		def, err := s.registry.DefineTopic(s.ctx, &Definition{
			ID:                "JURISDICTION_EU",
			Name:              "EU jurisdiction cleared",
			Category:          CategoryCompliance,
			DefaultExpiryDays: 180,
		})
		s.Require().NoError(err)
		s.Equal(s.now, def.CreatedAt)
		s.False(def.Required)
		s.Equal(180, def.DefaultExpiryDays)
	})

	s.Run("rejects a duplicate id", func() {
		_, err := s.registry.DefineTopic(s.ctx, &Definition{
			ID:       "JURISDICTION_EU",
			Name:     "EU jurisdiction cleared",
			Category: CategoryCompliance,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing fields", func() {
		_, err := s.registry.DefineTopic(s.ctx, &Definition{Name: "nameless", Category: CategoryKYC})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.registry.DefineTopic(s.ctx, &Definition{ID: "NO_NAME", Category: CategoryKYC})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.registry.DefineTopic(s.ctx, &Definition{ID: "BAD_CATEGORY", Name: "x", Category: "astrology"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects negative expiry days", func() {
		_, err := s.registry.DefineTopic(s.ctx, &Definition{
			ID:                "NEGATIVE",
			Name:              "negative expiry",
			Category:          CategoryCompliance,
			DefaultExpiryDays: -1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestGetTopicUnknown() {
	_, err := s.registry.GetTopic(s.ctx, id.TopicID("NOPE"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrySuite) TestUpdateTopic() {
	s.Run("patches policy fields", func() {
		required := true
		days := 90
		laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))

		def, err := s.registry.UpdateTopic(laterCtx, id.TopicID("ACCREDITED_INVESTOR"), Patch{
			Required:          &required,
			DefaultExpiryDays: &days,
		})
		s.Require().NoError(err)
		s.True(def.Required)
		s.Equal(90, def.DefaultExpiryDays)
		s.Equal(s.now.Add(time.Hour), def.UpdatedAt)

		required2, err := s.registry.ListRequiredTopics(s.ctx)
		s.Require().NoError(err)
		s.Len(required2, 2)
	})

	s.Run("failed patch leaves the record untouched", func() {
		days := -7
		_, err := s.registry.UpdateTopic(s.ctx, id.TopicID("ACCREDITED_INVESTOR"), Patch{
			DefaultExpiryDays: &days,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		def, err := s.registry.GetTopic(s.ctx, id.TopicID("ACCREDITED_INVESTOR"))
		s.Require().NoError(err)
		s.Equal(90, def.DefaultExpiryDays)
	})

	s.Run("unknown topic", func() {
		days := 10
		_, err := s.registry.UpdateTopic(s.ctx, id.TopicID("NOPE"), Patch{DefaultExpiryDays: &days})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
