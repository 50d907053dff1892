package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/audit"
	"attesta/internal/credential"
	"attesta/internal/issuer"
	"attesta/internal/lifecycle"
	"attesta/internal/roles"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

var (
	adminID    = id.Identity("did:web:registry.example")
	issuerID   = id.Identity("did:web:university.example")
	revokerID  = id.Identity("did:web:compliance.example")
	outsiderID = id.Identity("did:key:z6MkOutsider")
	holderID   = id.Identity("did:key:z6MkHolder")
)

// captureEmitter records emitted audit events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureEmitter) Emit(_ context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) byAction(action audit.Action) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Event
	for _, event := range c.events {
		if event.Action == action {
			out = append(out, event)
		}
	}
	return out
}

// captureInvalidator records cache invalidations.
type captureInvalidator struct {
	mu  sync.Mutex
	ids []id.CredentialID
}

func (c *captureInvalidator) Invalidate(_ context.Context, credID id.CredentialID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, credID)
}

type RegistrySuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	store       *credential.InMemoryStore
	issuerStore *issuer.InMemoryStore
	roles       *roles.Service
	pause       *lifecycle.Controller
	emitter     *captureEmitter
	invalidator *captureInvalidator
	service     *Service
}

func (s *RegistrySuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.store = credential.NewInMemoryStore()
	s.issuerStore = issuer.NewInMemoryStore()
	s.roles = roles.NewService(roles.NewInMemoryStore())
	s.Require().NoError(s.roles.Bootstrap(s.ctx, adminID))
	s.Require().NoError(s.roles.Grant(s.ctx, adminID, issuerID, id.CapabilityIssuer))
	s.Require().NoError(s.roles.Grant(s.ctx, adminID, revokerID, id.CapabilityRevoker))

	s.pause = lifecycle.NewController(s.roles)
	s.emitter = &captureEmitter{}
	s.invalidator = &captureInvalidator{}

	issuers := issuer.NewService(s.issuerStore, s.roles)
	s.service = NewService(s.store, s.roles, issuers, s.pause,
		WithAudit(s.emitter),
		WithInvalidator(s.invalidator),
	)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) issue(payload string) *credential.Credential {
	cred, err := s.service.Issue(s.ctx, issuerID, IssueRequest{
		Recipient: holderID,
		Type:      "degree",
		Payload:   payload,
	})
	s.Require().NoError(err)
	return cred
}

func (s *RegistrySuite) TestIssue() {
	s.Run("issues an active credential with the actor as issuer", func() {
		cred := s.issue("physics")

		s.Equal(issuerID, cred.Issuer)
		s.Equal(holderID, cred.Recipient)
		s.Equal(credential.StatusActive, cred.Status)
		s.Equal(s.now, cred.IssuedAt)
		s.NotZero(cred.ID)
	})

	s.Run("advances the issuer counter", func() {
		s.issue("chemistry")
		s.issue("biology")

		profile, err := s.issuerStore.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(uint64(3), profile.CredentialsIssued)
	})

	s.Run("emits an audit event", func() {
		events := s.emitter.byAction(audit.ActionCredentialIssued)
		s.Require().NotEmpty(events)
		s.Equal(issuerID, events[0].Actor)
		s.Equal(holderID, events[0].Subject)
	})

	s.Run("rejects callers without the issuer capability", func() {
		_, err := s.service.Issue(s.ctx, outsiderID, IssueRequest{
			Recipient: holderID, Type: "degree", Payload: "nope",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects unauthenticated callers", func() {
		_, err := s.service.Issue(s.ctx, "", IssueRequest{
			Recipient: holderID, Type: "degree", Payload: "nope",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects duplicate content with conflict", func() {
		s.issue("duplicate-me")
		_, err := s.service.Issue(s.ctx, issuerID, IssueRequest{
			Recipient: holderID, Type: "degree", Payload: "duplicate-me",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects invalid requests with validation", func() {
		_, err := s.service.Issue(s.ctx, issuerID, IssueRequest{
			Recipient: holderID, Type: "", Payload: "data",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestIssueBatch() {
	s.Run("issues all entries atomically", func() {
		creds, err := s.service.IssueBatch(s.ctx, issuerID, []IssueRequest{
			{Recipient: holderID, Type: "degree", Payload: "b1"},
			{Recipient: holderID, Type: "degree", Payload: "b2"},
			{Recipient: holderID, Type: "license", Payload: "b3"},
		})
		s.Require().NoError(err)
		s.Len(creds, 3)
		for _, cred := range creds {
			s.NotZero(cred.ID)
		}

		profile, err := s.issuerStore.Get(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(uint64(3), profile.CredentialsIssued)
	})

	s.Run("one bad entry rejects the whole batch", func() {
		before, err := s.store.ListByIssuer(s.ctx, issuerID)
		s.Require().NoError(err)

		_, err = s.service.IssueBatch(s.ctx, issuerID, []IssueRequest{
			{Recipient: holderID, Type: "degree", Payload: "good"},
			{Recipient: holderID, Type: "", Payload: "bad"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		after, err := s.store.ListByIssuer(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(before, after, "no partial writes")
	})

	s.Run("one duplicate rejects the whole batch", func() {
		s.issue("already-there")

		_, err := s.service.IssueBatch(s.ctx, issuerID, []IssueRequest{
			{Recipient: holderID, Type: "degree", Payload: "brand-new"},
			{Recipient: holderID, Type: "degree", Payload: "already-there"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty batch is a validation error", func() {
		_, err := s.service.IssueBatch(s.ctx, issuerID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestRevoke() {
	s.Run("revoker can revoke an active credential", func() {
		cred := s.issue("revoke-me")

		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "issued in error"))

		found, err := s.service.Get(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal(credential.StatusRevoked, found.Status)
		s.Equal("issued in error", found.RevocationReason)
	})

	s.Run("revocation invalidates cached verification outcomes", func() {
		cred := s.issue("invalidate-me")
		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "fraud"))
		s.Contains(s.invalidator.ids, cred.ID)
	})

	s.Run("revocation is terminal", func() {
		cred := s.issue("revoke-twice")
		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "first"))

		err := s.service.Revoke(s.ctx, revokerID, cred.ID, "second")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		found, err := s.service.Get(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal("first", found.RevocationReason, "reason never overwritten")
	})

	s.Run("requires a reason", func() {
		cred := s.issue("needs-reason")
		err := s.service.Revoke(s.ctx, revokerID, cred.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("requires the revoker capability", func() {
		cred := s.issue("protected")
		err := s.service.Revoke(s.ctx, issuerID, cred.ID, "sneaky")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown credential is not found", func() {
		err := s.service.Revoke(s.ctx, revokerID, id.CredentialID(424242), "reason")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("emits an audit event with the reason", func() {
		cred := s.issue("audited-revoke")
		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "compliance hold"))

		events := s.emitter.byAction(audit.ActionCredentialRevoked)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(cred.ID, last.CredentialID)
		s.Equal("compliance hold", last.Detail)
	})
}

func (s *RegistrySuite) TestSetStatus() {
	s.Run("issuer of record can suspend and reactivate", func() {
		cred := s.issue("suspend-me")

		s.Require().NoError(s.service.SetStatus(s.ctx, issuerID, cred.ID, credential.StatusSuspended))
		found, err := s.service.Get(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal(credential.StatusSuspended, found.Status)

		s.Require().NoError(s.service.SetStatus(s.ctx, issuerID, cred.ID, credential.StatusActive))
		found, err = s.service.Get(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal(credential.StatusActive, found.Status)
	})

	s.Run("admin can update any credential", func() {
		cred := s.issue("admin-touch")
		s.Require().NoError(s.service.SetStatus(s.ctx, adminID, cred.ID, credential.StatusSuspended))
	})

	s.Run("another issuer is forbidden", func() {
		otherIssuer := id.Identity("did:web:other-school.example")
		s.Require().NoError(s.roles.Grant(s.ctx, adminID, otherIssuer, id.CapabilityIssuer))

		cred := s.issue("not-yours")
		err := s.service.SetStatus(s.ctx, otherIssuer, cred.ID, credential.StatusSuspended)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("cannot set revoked directly", func() {
		cred := s.issue("no-direct-revoke")
		err := s.service.SetStatus(s.ctx, issuerID, cred.ID, credential.StatusRevoked)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("revoked credentials never change status", func() {
		cred := s.issue("frozen")
		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "done"))

		err := s.service.SetStatus(s.ctx, adminID, cred.ID, credential.StatusActive)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistrySuite) TestPauseGate() {
	s.Run("paused registry rejects mutations with unavailable", func() {
		cred := s.issue("before-pause")
		s.Require().NoError(s.pause.Pause(s.ctx, adminID))

		_, err := s.service.Issue(s.ctx, issuerID, IssueRequest{
			Recipient: holderID, Type: "degree", Payload: "while-paused",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

		err = s.service.Revoke(s.ctx, revokerID, cred.ID, "while-paused")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

		err = s.service.SetStatus(s.ctx, issuerID, cred.ID, credential.StatusSuspended)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("reads stay available while paused", func() {
		s.Require().NoError(s.pause.Resume(s.ctx, adminID))
		cred := s.issue("readable")
		s.Require().NoError(s.pause.Pause(s.ctx, adminID))

		found, err := s.service.Get(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal(cred.ID, found.ID)

		valid, err := s.service.IsValid(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.True(valid)

		ids, err := s.service.ListByRecipient(s.ctx, holderID)
		s.Require().NoError(err)
		s.NotEmpty(ids)
	})

	s.Run("capability check runs before the pause check", func() {
		s.Require().NoError(s.pause.Pause(s.ctx, adminID))

		_, err := s.service.Issue(s.ctx, outsiderID, IssueRequest{
			Recipient: holderID, Type: "degree", Payload: "x",
		})
		// An unauthorized caller learns about authorization, not pause state.
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("resume restores mutations", func() {
		s.Require().NoError(s.pause.Pause(s.ctx, adminID))
		s.Require().NoError(s.pause.Resume(s.ctx, adminID))
		s.issue("after-resume")
	})
}

func (s *RegistrySuite) TestIsValid() {
	s.Run("unknown id is false, not an error", func() {
		valid, err := s.service.IsValid(s.ctx, id.CredentialID(987654))
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("revoked is false", func() {
		cred := s.issue("will-revoke")
		s.Require().NoError(s.service.Revoke(s.ctx, revokerID, cred.ID, "gone"))

		valid, err := s.service.IsValid(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("expiry is computed lazily against the request clock", func() {
		cred, err := s.service.Issue(s.ctx, issuerID, IssueRequest{
			Recipient: holderID,
			Type:      "short-lived",
			Payload:   "expires",
			ExpiresAt: s.now.Add(time.Hour),
		})
		s.Require().NoError(err)

		valid, err := s.service.IsValid(s.ctx, cred.ID)
		s.Require().NoError(err)
		s.True(valid)

		later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour))
		valid, err = s.service.IsValid(later, cred.ID)
		s.Require().NoError(err)
		s.False(valid)

		// The stored record still reads active; nothing was written back.
		found, err := s.service.Get(later, cred.ID)
		s.Require().NoError(err)
		s.Equal(credential.StatusActive, found.Status)
	})
}

func (s *RegistrySuite) TestQueries() {
	s.Run("lists reflect issuance order", func() {
		first := s.issue("q1")
		second := s.issue("q2")

		ids, err := s.service.ListByRecipient(s.ctx, holderID)
		s.Require().NoError(err)
		s.Equal([]id.CredentialID{first.ID, second.ID}, ids)

		ids, err = s.service.ListByType(s.ctx, "degree")
		s.Require().NoError(err)
		s.Equal([]id.CredentialID{first.ID, second.ID}, ids)
	})

	s.Run("unknown credential get is not found", func() {
		_, err := s.service.Get(s.ctx, id.CredentialID(111111))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
