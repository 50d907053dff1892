package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

var (
	deployerID = id.Identity("did:web:registry.example")
	aliceID    = id.Identity("did:key:alice")
	bobID      = id.Identity("did:key:bob")
)

type RolesSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
}

func (s *RolesSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.service = NewService(NewInMemoryStore())
	s.Require().NoError(s.service.Bootstrap(s.ctx, deployerID))
}

func TestRolesSuite(t *testing.T) {
	suite.Run(t, new(RolesSuite))
}

func (s *RolesSuite) TestBootstrap() {
	s.Run("deployer holds every capability", func() {
		for _, capability := range id.AllCapabilities() {
			held, err := s.service.Has(s.ctx, deployerID, capability)
			s.Require().NoError(err)
			s.True(held, "deployer should hold %s", capability)
		}
	})

	s.Run("bootstrap is idempotent", func() {
		s.Require().NoError(s.service.Bootstrap(s.ctx, deployerID))
		grants, err := s.service.List(s.ctx, deployerID)
		s.Require().NoError(err)
		s.Len(grants, len(id.AllCapabilities()))
	})

	s.Run("rejects an empty identity", func() {
		err := s.service.Bootstrap(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RolesSuite) TestGrantAndRevoke() {
	s.Run("admin grants a capability", func() {
		s.Require().NoError(s.service.Grant(s.ctx, deployerID, aliceID, id.CapabilityIssuer))

		held, err := s.service.Has(s.ctx, aliceID, id.CapabilityIssuer)
		s.Require().NoError(err)
		s.True(held)
	})

	s.Run("granting an already-held capability is a no-op success", func() {
		s.Require().NoError(s.service.Grant(s.ctx, deployerID, aliceID, id.CapabilityIssuer))
		s.Require().NoError(s.service.Grant(s.ctx, deployerID, aliceID, id.CapabilityIssuer))

		grants, err := s.service.List(s.ctx, aliceID)
		s.Require().NoError(err)
		s.Len(grants, 1)
	})

	s.Run("non-admin cannot grant", func() {
		err := s.service.Grant(s.ctx, aliceID, bobID, id.CapabilityIssuer)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin revokes a capability", func() {
		s.Require().NoError(s.service.Grant(s.ctx, deployerID, bobID, id.CapabilityRevoker))
		s.Require().NoError(s.service.Revoke(s.ctx, deployerID, bobID, id.CapabilityRevoker))

		held, err := s.service.Has(s.ctx, bobID, id.CapabilityRevoker)
		s.Require().NoError(err)
		s.False(held)
	})

	s.Run("revoking an absent grant is a no-op success", func() {
		s.Require().NoError(s.service.Revoke(s.ctx, deployerID, bobID, id.CapabilityVerifier))
	})

	s.Run("capabilities are independent", func() {
		s.Require().NoError(s.service.Grant(s.ctx, deployerID, aliceID, id.CapabilityRevoker))

		heldRevoker, err := s.service.Has(s.ctx, aliceID, id.CapabilityRevoker)
		s.Require().NoError(err)
		s.True(heldRevoker)

		heldAdmin, err := s.service.Has(s.ctx, aliceID, id.CapabilityAdmin)
		s.Require().NoError(err)
		s.False(heldAdmin)
	})
}

func (s *RolesSuite) TestRequire() {
	s.Run("passes for held capabilities", func() {
		s.NoError(s.service.Require(s.ctx, deployerID, id.CapabilityAdmin))
	})

	s.Run("fails with unauthorized for missing capabilities", func() {
		err := s.service.Require(s.ctx, bobID, id.CapabilityIssuer)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("fails with unauthorized for a zero identity", func() {
		err := s.service.Require(s.ctx, "", id.CapabilityIssuer)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
