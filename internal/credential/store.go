package credential

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"

	id "attesta/pkg/domain"
)

// Store is the append-only credential ledger. Implementations must keep the
// primary record and the four secondary indexes (recipient, issuer, type,
// content hash) in one atomic unit: no observer may see a record without its
// index entries or vice versa.
//
// Stores return pkg/platform/sentinel errors; the registry service translates
// them into coded domain errors.
type Store interface {
	// Create assigns the next id, writes the record and its index entries,
	// and returns the assigned id. Returns sentinel.ErrConflict when the
	// content hash is already present.
	Create(ctx context.Context, cred *Credential) (id.CredentialID, error)

	// CreateBatch behaves like sequential Creates inside one atomic unit:
	// if any entry conflicts, nothing is written.
	CreateBatch(ctx context.Context, creds []*Credential) ([]id.CredentialID, error)

	// Get returns a copy of the record or sentinel.ErrNotFound.
	Get(ctx context.Context, credID id.CredentialID) (*Credential, error)

	// Update runs validate then apply on the record under the store's write
	// lock, linearizing mutations on the same id. When validate fails the
	// record is returned unchanged alongside the error so callers can report
	// current state.
	Update(ctx context.Context, credID id.CredentialID, validate func(*Credential) error, apply func(*Credential)) (*Credential, error)

	// FindIDByContentHash returns the id holding the hash, or
	// sentinel.ErrNotFound.
	FindIDByContentHash(ctx context.Context, contentHash string) (id.CredentialID, error)

	// List queries return ids in insertion order; an unknown key yields an
	// empty slice, not an error.
	ListByRecipient(ctx context.Context, recipient id.Identity) ([]id.CredentialID, error)
	ListByIssuer(ctx context.Context, issuer id.Identity) ([]id.CredentialID, error)
	ListByType(ctx context.Context, credentialType string) ([]id.CredentialID, error)
}
