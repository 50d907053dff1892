package roles

import (
	"context"
	"database/sql"
	"fmt"

	id "attesta/pkg/domain"
	txcontext "attesta/pkg/platform/tx"
)

// PostgresStore persists role grants. Pure I/O; the Admin gate lives in the
// service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Add(ctx context.Context, grant Grant) error {
	query := `
		INSERT INTO role_grants (identity, capability, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, capability) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		grant.Identity.String(), grant.Capability.String(), grant.GrantedBy.String(), grant.GrantedAt)
	if err != nil {
		return fmt.Errorf("add role grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, identity id.Identity, capability id.Capability) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM role_grants WHERE identity = $1 AND capability = $2`,
		identity.String(), capability.String())
	if err != nil {
		return fmt.Errorf("remove role grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, identity id.Identity, capability id.Capability) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_grants WHERE identity = $1 AND capability = $2)`,
		identity.String(), capability.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByIdentity(ctx context.Context, identity id.Identity) ([]Grant, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT identity, capability, granted_by, granted_at FROM role_grants WHERE identity = $1 ORDER BY granted_at`,
		identity.String())
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			grant      Grant
			rawID      string
			capability string
			grantedBy  string
		)
		if err := rows.Scan(&rawID, &capability, &grantedBy, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan role grant: %w", err)
		}
		grant.Identity = id.Identity(rawID)
		grant.Capability = id.Capability(capability)
		grant.GrantedBy = id.Identity(grantedBy)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role grants: %w", err)
	}
	return grants, nil
}
