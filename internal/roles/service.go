package roles

import (
	"context"
	"log/slog"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

// Service owns capability management. Grant and Revoke are Admin-gated;
// Has and Require are pure queries callable by anyone.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap grants every capability to the deploying identity. Idempotent, so
// restarts are safe.
func (s *Service) Bootstrap(ctx context.Context, deployer id.Identity) error {
	if deployer.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "bootstrap identity must not be empty")
	}
	now := requestcontext.Now(ctx)
	for _, capability := range id.AllCapabilities() {
		grant := Grant{Identity: deployer, Capability: capability, GrantedBy: deployer, GrantedAt: now}
		if err := s.store.Add(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "bootstrap role grant failed")
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "bootstrapped deployer capabilities", "identity", deployer)
	}
	return nil
}

// Grant gives identity a capability. Granting an already-held capability is a
// no-op success.
func (s *Service) Grant(ctx context.Context, actor, identity id.Identity, capability id.Capability) error {
	if err := s.Require(ctx, actor, id.CapabilityAdmin); err != nil {
		return err
	}
	if identity.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "grantee identity must not be empty")
	}
	grant := Grant{
		Identity:   identity,
		Capability: capability,
		GrantedBy:  actor,
		GrantedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Add(ctx, grant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "role grant failed")
	}
	return nil
}

// Revoke removes a capability from identity. Removing an absent grant is a
// no-op success; the end state is what the caller asked for either way.
func (s *Service) Revoke(ctx context.Context, actor, identity id.Identity, capability id.Capability) error {
	if err := s.Require(ctx, actor, id.CapabilityAdmin); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, identity, capability); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "role revoke failed")
	}
	return nil
}

// Has reports whether identity holds capability. No side effects.
func (s *Service) Has(ctx context.Context, identity id.Identity, capability id.Capability) (bool, error) {
	held, err := s.store.Has(ctx, identity, capability)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}
	return held, nil
}

// Require returns CodeUnauthorized when identity does not hold capability.
// Every mutating registry entry point calls this first.
func (s *Service) Require(ctx context.Context, identity id.Identity, capability id.Capability) error {
	if identity.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	held, err := s.store.Has(ctx, identity, capability)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}
	if !held {
		return dErrors.Newf(dErrors.CodeUnauthorized, "identity lacks %s capability", capability)
	}
	return nil
}

// List returns every grant held by identity.
func (s *Service) List(ctx context.Context, identity id.Identity) ([]Grant, error) {
	grants, err := s.store.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "role list failed")
	}
	return grants, nil
}
