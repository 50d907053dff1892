package issuer

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists issuer profiles and their issuance counters.
type Store interface {
	// Upsert overwrites the descriptive fields of the profile, preserving
	// CredentialsIssued and CreatedAt when a record already exists.
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)

	// Get returns a copy of the profile or sentinel.ErrNotFound.
	Get(ctx context.Context, identity id.Identity) (*Profile, error)

	// IncrementIssued adds count to the issuer's counter, creating a
	// counter-only record when the issuer has no profile yet.
	IncrementIssued(ctx context.Context, identity id.Identity, count uint64) error

	// SetActive flips the is_active flag. Returns sentinel.ErrNotFound for
	// unknown issuers.
	SetActive(ctx context.Context, identity id.Identity, active bool) error
}
