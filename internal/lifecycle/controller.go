// Package lifecycle holds the global pause gate used for incident response.
// Pausing blocks every mutating registry operation; reads stay available so
// observability is never lost during an incident.
package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// RoleChecker is the slice of the roles service this package needs.
type RoleChecker interface {
	Require(ctx context.Context, identity id.Identity, capability id.Capability) error
}

// Controller is the pause/resume gate. The flag is an atomic bool so the
// read-side Guard check never takes a lock.
type Controller struct {
	paused atomic.Bool
	roles  RoleChecker
	logger *slog.Logger
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(roles RoleChecker, opts ...Option) *Controller {
	c := &Controller{roles: roles}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pause suspends all mutating operations. Admin-only; pausing an already
// paused registry is a no-op success.
func (c *Controller) Pause(ctx context.Context, actor id.Identity) error {
	if err := c.roles.Require(ctx, actor, id.CapabilityAdmin); err != nil {
		return err
	}
	c.paused.Store(true)
	if c.logger != nil {
		c.logger.WarnContext(ctx, "registry paused", "actor", actor)
	}
	return nil
}

// Resume lifts the pause. Admin-only; resuming a running registry is a no-op
// success.
func (c *Controller) Resume(ctx context.Context, actor id.Identity) error {
	if err := c.roles.Require(ctx, actor, id.CapabilityAdmin); err != nil {
		return err
	}
	c.paused.Store(false)
	if c.logger != nil {
		c.logger.InfoContext(ctx, "registry resumed", "actor", actor)
	}
	return nil
}

// IsPaused reports the current gate state.
func (c *Controller) IsPaused() bool {
	return c.paused.Load()
}

// Guard returns CodeUnavailable while the registry is paused. Mutating entry
// points call this after their capability check; read-only entry points
// never do.
func (c *Controller) Guard() error {
	if c.paused.Load() {
		return dErrors.New(dErrors.CodeUnavailable, "registry is paused")
	}
	return nil
}
