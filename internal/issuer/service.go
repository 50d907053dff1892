package issuer

import (
	"context"
	"errors"
	"log/slog"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// RoleChecker is the slice of the roles service this package needs.
type RoleChecker interface {
	Require(ctx context.Context, identity id.Identity, capability id.Capability) error
}

// Service manages issuer profiles. Setup is idempotent-overwrite: re-invoking
// it replaces descriptive fields and preserves the issuance counter.
// Deactivation is Admin-only and never touches already-issued credentials.
type Service struct {
	store  Store
	roles  RoleChecker
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store Store, roles RoleChecker, opts ...Option) *Service {
	s := &Service{store: store, roles: roles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setup creates or overwrites the caller's own profile. Requires the Issuer
// capability; an issuer cannot write another issuer's profile.
func (s *Service) Setup(ctx context.Context, actor id.Identity, name, description, website, contact string) (*Profile, error) {
	if err := s.roles.Require(ctx, actor, id.CapabilityIssuer); err != nil {
		return nil, err
	}
	profile, err := NewProfile(actor, name, description, website, contact, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Upsert(ctx, profile)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issuer profile save failed")
	}
	return stored, nil
}

// Get returns the profile for identity.
func (s *Service) Get(ctx context.Context, identity id.Identity) (*Profile, error) {
	profile, err := s.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "issuer profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issuer profile lookup failed")
	}
	return profile, nil
}

// IsActive reports whether identity has an active profile. Issuers that never
// set up a profile count as active: deactivation is an explicit admin act.
func (s *Service) IsActive(ctx context.Context, identity id.Identity) (bool, error) {
	profile, err := s.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return true, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "issuer profile lookup failed")
	}
	return profile.IsActive, nil
}

// SetActive flips issuer activity. Admin-only.
func (s *Service) SetActive(ctx context.Context, actor, identity id.Identity, active bool) error {
	if err := s.roles.Require(ctx, actor, id.CapabilityAdmin); err != nil {
		return err
	}
	if err := s.store.SetActive(ctx, identity, active); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer profile not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "issuer activity update failed")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "issuer activity changed", "issuer", identity, "active", active, "actor", actor)
	}
	return nil
}

// RecordIssued advances the issuer's monotonic counter. Called by the
// registry core once per successful issuance (count > 1 for batches).
func (s *Service) RecordIssued(ctx context.Context, identity id.Identity, count uint64) error {
	if count == 0 {
		return nil
	}
	if err := s.store.IncrementIssued(ctx, identity, count); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "issuer counter update failed")
	}
	return nil
}
