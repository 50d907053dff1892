package audit

import (
	"context"

	id "attesta/pkg/domain"
)

// Store is the append-only audit sink of record.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCredential(ctx context.Context, credID id.CredentialID) ([]Event, error)
	ListByActor(ctx context.Context, actor id.Identity) ([]Event, error)
}
