// Package registry is the orchestration core: every mutating entry point runs
// the same three-step gate (capability check, pause check, validation) before
// touching the credential store, and read entry points skip the pause check
// so the ledger stays observable during incidents.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesta/internal/audit"
	"attesta/internal/credential"
	"attesta/internal/registry/metrics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// RoleChecker is the slice of the roles service the core needs.
type RoleChecker interface {
	Require(ctx context.Context, identity id.Identity, capability id.Capability) error
	Has(ctx context.Context, identity id.Identity, capability id.Capability) (bool, error)
}

// IssuerCounter advances per-issuer issuance accounting.
type IssuerCounter interface {
	RecordIssued(ctx context.Context, identity id.Identity, count uint64) error
}

// PauseGuard gates mutations while the registry is paused.
type PauseGuard interface {
	Guard() error
}

// AuditEmitter queues audit events for successful mutations.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// ValidityInvalidator drops cached verification outcomes after a lifecycle
// mutation so revocations become visible immediately, not at cache expiry.
type ValidityInvalidator interface {
	Invalidate(ctx context.Context, credID id.CredentialID)
}

// Service is the registry core.
type Service struct {
	creds       credential.Store
	roles       RoleChecker
	issuers     IssuerCounter
	gate        PauseGuard
	audit       AuditEmitter
	invalidator ValidityInvalidator
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
}

type Option func(*Service)

func WithAudit(emitter AuditEmitter) Option {
	return func(s *Service) {
		s.audit = emitter
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithInvalidator(inv ValidityInvalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(creds credential.Store, roles RoleChecker, issuers IssuerCounter, gate PauseGuard, opts ...Option) *Service {
	s := &Service{
		creds:   creds,
		roles:   roles,
		issuers: issuers,
		gate:    gate,
		tracer:  otel.Tracer("attesta/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest carries one issuance. ExpiresAt zero means the credential
// never expires.
type IssueRequest struct {
	Recipient   id.Identity
	Type        string
	Payload     string
	MetadataURI string
	ExpiresAt   time.Time
}

// Issue creates one credential. Requires the Issuer capability and an
// unpaused registry; rejects duplicate content with CodeConflict.
func (s *Service) Issue(ctx context.Context, actor id.Identity, req IssueRequest) (*credential.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Issue")
	defer span.End()

	cred, err := s.issueOne(ctx, actor, req)
	if err != nil {
		s.metrics.IncRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}

	if err := s.issuers.RecordIssued(ctx, actor, 1); err != nil && s.logger != nil {
		// The credential is committed; a counter failure is logged, not
		// surfaced, so the ledger and the caller agree on the outcome.
		s.logger.ErrorContext(ctx, "issuer counter update failed", "issuer", actor, "error", err)
	}

	span.SetAttributes(attribute.Int64("credential.id", int64(cred.ID)))
	s.metrics.IncIssued(1)
	s.emitIssued(ctx, actor, cred)
	return cred, nil
}

func (s *Service) issueOne(ctx context.Context, actor id.Identity, req IssueRequest) (*credential.Credential, error) {
	if err := s.roles.Require(ctx, actor, id.CapabilityIssuer); err != nil {
		return nil, err
	}
	if err := s.gate.Guard(); err != nil {
		return nil, err
	}

	cred, err := s.buildCredential(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	credID, err := s.creds.Create(ctx, cred)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "credential with identical content already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential write failed")
	}
	cred.ID = credID
	return cred, nil
}

func (s *Service) buildCredential(ctx context.Context, actor id.Identity, req IssueRequest) (*credential.Credential, error) {
	now := requestcontext.Now(ctx)
	return credential.New(actor, req.Recipient, req.Type, req.Payload, req.MetadataURI, now, req.ExpiresAt)
}

// IssueBatch creates all requests atomically: one invalid or duplicate entry
// rejects the whole batch so the audit trail never shows a partial batch.
func (s *Service) IssueBatch(ctx context.Context, actor id.Identity, reqs []IssueRequest) ([]*credential.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "registry.IssueBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(reqs))))
	defer span.End()

	creds, err := s.issueBatch(ctx, actor, reqs)
	if err != nil {
		s.metrics.IncRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}

	if err := s.issuers.RecordIssued(ctx, actor, uint64(len(creds))); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "issuer counter update failed", "issuer", actor, "error", err)
	}

	s.metrics.IncIssued(len(creds))
	s.metrics.ObserveBatchSize(len(creds))
	for _, cred := range creds {
		s.emitIssued(ctx, actor, cred)
	}
	return creds, nil
}

func (s *Service) issueBatch(ctx context.Context, actor id.Identity, reqs []IssueRequest) ([]*credential.Credential, error) {
	if err := s.roles.Require(ctx, actor, id.CapabilityIssuer); err != nil {
		return nil, err
	}
	if err := s.gate.Guard(); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "batch must not be empty")
	}

	creds := make([]*credential.Credential, 0, len(reqs))
	for i, req := range reqs {
		cred, err := s.buildCredential(ctx, actor, req)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf("batch entry %d", i))
		}
		creds = append(creds, cred)
	}

	ids, err := s.creds.CreateBatch(ctx, creds)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "batch contains credential content that already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch write failed")
	}
	for i := range creds {
		creds[i].ID = ids[i]
	}
	return creds, nil
}

// Revoke terminally invalidates a credential. Requires the Revoker
// capability, an unpaused registry, and a non-empty reason. A second revoke
// fails with CodeConflict instead of silently replacing the reason.
func (s *Service) Revoke(ctx context.Context, actor id.Identity, credID id.CredentialID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "registry.Revoke",
		trace.WithAttributes(attribute.Int64("credential.id", int64(credID))))
	defer span.End()

	if err := s.revoke(ctx, actor, credID, reason); err != nil {
		s.metrics.IncRejected(string(dErrors.CodeOf(err)))
		return err
	}

	s.metrics.IncRevoked()
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, credID)
	}
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:       audit.ActionCredentialRevoked,
			Actor:        actor,
			CredentialID: credID,
			Detail:       reason,
		})
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, actor id.Identity, credID id.CredentialID, reason string) error {
	if err := s.roles.Require(ctx, actor, id.CapabilityRevoker); err != nil {
		return err
	}
	if err := s.gate.Guard(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	_, err := s.creds.Update(ctx, credID,
		func(cred *credential.Credential) error {
			return cred.CanRevoke(reason)
		},
		func(cred *credential.Credential) {
			cred.ApplyRevoke(reason, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		// CanRevoke errors are already coded.
		return err
	}
	return nil
}

// SetStatus moves a credential between Active and Suspended. The actor must
// be the issuer of record or hold Admin; any other issuer is rejected even
// though it holds the Issuer capability.
func (s *Service) SetStatus(ctx context.Context, actor id.Identity, credID id.CredentialID, status credential.Status) error {
	ctx, span := s.tracer.Start(ctx, "registry.SetStatus",
		trace.WithAttributes(attribute.Int64("credential.id", int64(credID))))
	defer span.End()

	if err := s.setStatus(ctx, actor, credID, status); err != nil {
		s.metrics.IncRejected(string(dErrors.CodeOf(err)))
		return err
	}

	s.metrics.IncStatusUpdates()
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, credID)
	}
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:       audit.ActionCredentialStatusSet,
			Actor:        actor,
			CredentialID: credID,
			Detail:       string(status),
		})
	}
	return nil
}

func (s *Service) setStatus(ctx context.Context, actor id.Identity, credID id.CredentialID, status credential.Status) error {
	isAdmin, err := s.roles.Has(ctx, actor, id.CapabilityAdmin)
	if err != nil {
		return err
	}
	if !isAdmin {
		if err := s.roles.Require(ctx, actor, id.CapabilityIssuer); err != nil {
			return err
		}
	}
	if err := s.gate.Guard(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	_, err = s.creds.Update(ctx, credID,
		func(cred *credential.Credential) error {
			// The issuer-of-record check runs inside the store's critical
			// section alongside the transition check, so it sees the same
			// record state the apply step will mutate.
			if !isAdmin && cred.Issuer != actor {
				return dErrors.New(dErrors.CodeForbidden, "only the issuer of record or an admin may update this credential")
			}
			return cred.CanSetStatus(status)
		},
		func(cred *credential.Credential) {
			cred.ApplyStatus(status, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return err
	}
	return nil
}

// Get returns the credential or CodeNotFound. Reads skip the pause gate.
func (s *Service) Get(ctx context.Context, credID id.CredentialID) (*credential.Credential, error) {
	cred, err := s.creds.Get(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}
	return cred, nil
}

// IsValid is a total function over all possible ids: missing, revoked,
// suspended, and expired credentials are simply false, never an error.
// Expiry is computed against the request clock, not persisted back.
func (s *Service) IsValid(ctx context.Context, credID id.CredentialID) (bool, error) {
	cred, err := s.creds.Get(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}
	return cred.IsValidAt(requestcontext.Now(ctx)), nil
}

// ListByRecipient returns ids in issuance order; unknown keys yield an empty
// slice.
func (s *Service) ListByRecipient(ctx context.Context, recipient id.Identity) ([]id.CredentialID, error) {
	ids, err := s.creds.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential list failed")
	}
	return ids, nil
}

func (s *Service) ListByIssuer(ctx context.Context, issuer id.Identity) ([]id.CredentialID, error) {
	ids, err := s.creds.ListByIssuer(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential list failed")
	}
	return ids, nil
}

func (s *Service) ListByType(ctx context.Context, credentialType string) ([]id.CredentialID, error) {
	ids, err := s.creds.ListByType(ctx, credentialType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential list failed")
	}
	return ids, nil
}

func (s *Service) emitIssued(ctx context.Context, actor id.Identity, cred *credential.Credential) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		Actor:        actor,
		Subject:      cred.Recipient,
		CredentialID: cred.ID,
		Detail:       cred.Type,
	})
}
