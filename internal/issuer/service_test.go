package issuer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/roles"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

var (
	adminID  = id.Identity("did:web:registry.example")
	issuerID = id.Identity("did:web:university.example")
	otherID  = id.Identity("did:key:somebody")
)

type IssuerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *InMemoryStore
	service *Service
}

func (s *IssuerSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	roleService := roles.NewService(roles.NewInMemoryStore())
	s.Require().NoError(roleService.Bootstrap(s.ctx, adminID))
	s.Require().NoError(roleService.Grant(s.ctx, adminID, issuerID, id.CapabilityIssuer))

	s.store = NewInMemoryStore()
	s.service = NewService(s.store, roleService)
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) TestSetup() {
	s.Run("issuer creates its own profile", func() {
		profile, err := s.service.Setup(s.ctx, issuerID, "Example University", "Degrees since 1850", "https://university.example", "registrar@university.example")
		s.Require().NoError(err)
		s.Equal(issuerID, profile.Identity)
		s.Equal("Example University", profile.Name)
		s.True(profile.IsActive)
		s.Zero(profile.CredentialsIssued)
	})

	s.Run("re-setup overwrites fields and preserves the counter", func() {
		_, err := s.service.Setup(s.ctx, issuerID, "Old Name", "", "", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.RecordIssued(s.ctx, issuerID, 5))

		profile, err := s.service.Setup(s.ctx, issuerID, "New Name", "Updated", "", "")
		s.Require().NoError(err)
		s.Equal("New Name", profile.Name)
		s.Equal(uint64(5), profile.CredentialsIssued)
	})

	s.Run("re-setup cannot reactivate a deactivated issuer", func() {
		_, err := s.service.Setup(s.ctx, issuerID, "Example University", "", "", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.SetActive(s.ctx, adminID, issuerID, false))

		profile, err := s.service.Setup(s.ctx, issuerID, "Example University", "Fresh description", "", "")
		s.Require().NoError(err)
		s.False(profile.IsActive)

		active, err := s.service.IsActive(s.ctx, issuerID)
		s.Require().NoError(err)
		s.False(active)
	})

	s.Run("requires the issuer capability", func() {
		_, err := s.service.Setup(s.ctx, otherID, "Pretender", "", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects an empty name", func() {
		_, err := s.service.Setup(s.ctx, issuerID, "", "", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IssuerSuite) TestGet() {
	s.Run("returns the stored profile", func() {
		_, err := s.service.Setup(s.ctx, issuerID, "Example University", "", "", "")
		s.Require().NoError(err)

		profile, err := s.service.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal("Example University", profile.Name)
	})

	s.Run("unknown issuer is not found", func() {
		_, err := s.service.Get(s.ctx, otherID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IssuerSuite) TestActivity() {
	s.Run("issuers without a profile count as active", func() {
		active, err := s.service.IsActive(s.ctx, otherID)
		s.Require().NoError(err)
		s.True(active)
	})

	s.Run("admin can deactivate and reactivate", func() {
		_, err := s.service.Setup(s.ctx, issuerID, "Example University", "", "", "")
		s.Require().NoError(err)

		s.Require().NoError(s.service.SetActive(s.ctx, adminID, issuerID, false))
		active, err := s.service.IsActive(s.ctx, issuerID)
		s.Require().NoError(err)
		s.False(active)

		s.Require().NoError(s.service.SetActive(s.ctx, adminID, issuerID, true))
		active, err = s.service.IsActive(s.ctx, issuerID)
		s.Require().NoError(err)
		s.True(active)
	})

	s.Run("non-admin cannot change activity", func() {
		err := s.service.SetActive(s.ctx, issuerID, issuerID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deactivating an unknown issuer is not found", func() {
		err := s.service.SetActive(s.ctx, adminID, otherID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IssuerSuite) TestRecordIssued() {
	s.Run("creates a counter-only record for profileless issuers", func() {
		s.Require().NoError(s.service.RecordIssued(s.ctx, issuerID, 2))

		profile, err := s.store.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(uint64(2), profile.CredentialsIssued)
		s.Empty(profile.Name)
		s.True(profile.IsActive)
	})

	s.Run("counter is monotonic across batches", func() {
		s.Require().NoError(s.service.RecordIssued(s.ctx, issuerID, 1))
		s.Require().NoError(s.service.RecordIssued(s.ctx, issuerID, 3))

		profile, err := s.store.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(uint64(6), profile.CredentialsIssued)
	})

	s.Run("zero count is a no-op", func() {
		before, err := s.store.Get(s.ctx, issuerID)
		s.Require().NoError(err)

		s.Require().NoError(s.service.RecordIssued(s.ctx, issuerID, 0))

		after, err := s.store.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(before.CredentialsIssued, after.CredentialsIssued)
	})
}
