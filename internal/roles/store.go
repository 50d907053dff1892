package roles

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists the role-grant relation. Adding an existing grant is a no-op
// success so Grant stays idempotent all the way down.
type Store interface {
	Add(ctx context.Context, grant Grant) error
	Remove(ctx context.Context, identity id.Identity, capability id.Capability) error
	Has(ctx context.Context, identity id.Identity, capability id.Capability) (bool, error)
	ListByIdentity(ctx context.Context, identity id.Identity) ([]Grant, error)
}
