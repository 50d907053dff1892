// Package storage holds the Postgres schema shared by the store
// implementations.
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the registry database layout. Statements are idempotent so
// applying on every start is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id BIGSERIAL PRIMARY KEY,
	issuer TEXT NOT NULL,
	recipient TEXT NOT NULL,
	credential_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	metadata_uri TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	revocation_reason TEXT NOT NULL DEFAULT '',
	issued_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT credentials_content_hash_key UNIQUE (content_hash)
);
CREATE INDEX IF NOT EXISTS credentials_recipient_idx ON credentials (recipient, id);
CREATE INDEX IF NOT EXISTS credentials_issuer_idx ON credentials (issuer, id);
CREATE INDEX IF NOT EXISTS credentials_type_idx ON credentials (credential_type, id);

CREATE TABLE IF NOT EXISTS role_grants (
	identity TEXT NOT NULL,
	capability TEXT NOT NULL,
	granted_by TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (identity, capability)
);

CREATE TABLE IF NOT EXISTS issuer_profiles (
	identity TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	credentials_issued BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	actor TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	credential_id BIGINT,
	detail TEXT NOT NULL DEFAULT '',
	client_ip TEXT NOT NULL DEFAULT '',
	client_agent TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_credential_idx ON audit_events (credential_id, occurred_at);
CREATE INDEX IF NOT EXISTS audit_events_actor_idx ON audit_events (actor, occurred_at);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
