package issuer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
	txcontext "attesta/pkg/platform/tx"
)

// PostgresStore persists issuer profiles. Pure I/O; validation and the admin
// gate live in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const profileColumns = `identity, name, description, website, contact, is_active, credentials_issued, created_at, updated_at`

// Upsert writes the profile, overwriting descriptive fields on conflict.
// Activity is admin-controlled, so is_active is absent from the update set.
func (s *PostgresStore) Upsert(ctx context.Context, profile *Profile) (*Profile, error) {
	query := `
		INSERT INTO issuer_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		ON CONFLICT (identity) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			contact = EXCLUDED.contact,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns + `
	`
	row := s.execer(ctx).QueryRowContext(ctx, query,
		profile.Identity.String(), profile.Name, profile.Description, profile.Website, profile.Contact,
		profile.IsActive, profile.CreatedAt, profile.UpdatedAt)
	stored, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("upsert issuer profile: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, identity id.Identity) (*Profile, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM issuer_profiles WHERE identity = $1`, identity.String())
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get issuer profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) IncrementIssued(ctx context.Context, identity id.Identity, count uint64) error {
	query := `
		INSERT INTO issuer_profiles (identity, name, description, website, contact, is_active, credentials_issued, created_at, updated_at)
		VALUES ($1, '', '', '', '', TRUE, $2, NOW(), NOW())
		ON CONFLICT (identity) DO UPDATE SET
			credentials_issued = issuer_profiles.credentials_issued + EXCLUDED.credentials_issued,
			updated_at = NOW()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, identity.String(), int64(count))
	if err != nil {
		return fmt.Errorf("increment issued counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetActive(ctx context.Context, identity id.Identity, active bool) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE issuer_profiles SET is_active = $1, updated_at = NOW() WHERE identity = $2`,
		active, identity.String())
	if err != nil {
		return fmt.Errorf("set issuer active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set issuer active: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanProfile(row *sql.Row) (*Profile, error) {
	var (
		profile Profile
		rawID   string
		issued  int64
	)
	err := row.Scan(&rawID, &profile.Name, &profile.Description, &profile.Website, &profile.Contact,
		&profile.IsActive, &issued, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return nil, err
	}
	profile.Identity = id.Identity(rawID)
	profile.CredentialsIssued = uint64(issued)
	return &profile, nil
}
