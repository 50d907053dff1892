package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
	txcontext "attesta/pkg/platform/tx"
)

// PostgresStore persists the ledger in PostgreSQL. Atomicity between the
// primary row and its index entries comes from the database itself: the
// secondary indexes are SQL indexes on the credentials table, and the content
// hash uniqueness is a unique constraint, so a row and its index entries are
// one write. This store is pure I/O; lifecycle rules live in the model and
// are enforced through the Update callbacks.
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

const insertCredentialQuery = `
	INSERT INTO credentials (issuer, recipient, credential_type, payload, metadata_uri, issued_at, expires_at, status, content_hash, revocation_reason, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id
`

func (s *PostgresStore) Create(ctx context.Context, cred *Credential) (id.CredentialID, error) {
	return s.create(ctx, s.execer(ctx), cred)
}

func (s *PostgresStore) create(ctx context.Context, exec dbExecutor, cred *Credential) (id.CredentialID, error) {
	var assigned int64
	err := exec.QueryRowContext(ctx, insertCredentialQuery,
		cred.Issuer.String(),
		cred.Recipient.String(),
		cred.Type,
		cred.Payload,
		cred.MetadataURI,
		cred.IssuedAt,
		nullableTime(cred.ExpiresAt),
		string(cred.Status),
		cred.ContentHash,
		cred.RevocationReason,
		cred.UpdatedAt,
	).Scan(&assigned)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("insert credential: %w", err)
	}
	return id.CredentialID(assigned), nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, creds []*Credential) ([]id.CredentialID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]id.CredentialID, 0, len(creds))
	for _, cred := range creds {
		credID, err := s.create(ctx, tx, cred)
		if err != nil {
			return nil, err
		}
		ids = append(ids, credID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return ids, nil
}

const selectCredentialColumns = `
	id, issuer, recipient, credential_type, payload, metadata_uri, issued_at, expires_at, status, content_hash, revocation_reason, updated_at
`

func (s *PostgresStore) Get(ctx context.Context, credID id.CredentialID) (*Credential, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectCredentialColumns+` FROM credentials WHERE id = $1`, int64(credID))
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// Update takes a row lock so concurrent mutations on the same id serialize,
// which is what enforces terminal revocation without lost updates.
func (s *PostgresStore) Update(ctx context.Context, credID id.CredentialID, validate func(*Credential) error, apply func(*Credential)) (*Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+selectCredentialColumns+` FROM credentials WHERE id = $1 FOR UPDATE`, int64(credID))
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock credential: %w", err)
	}

	if err := validate(cred); err != nil {
		return cred, err
	}
	apply(cred)

	_, err = tx.ExecContext(ctx,
		`UPDATE credentials SET status = $1, revocation_reason = $2, updated_at = $3 WHERE id = $4`,
		string(cred.Status), cred.RevocationReason, cred.UpdatedAt, int64(credID))
	if err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) FindIDByContentHash(ctx context.Context, contentHash string) (id.CredentialID, error) {
	var found int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM credentials WHERE content_hash = $1`, contentHash).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("find by content hash: %w", err)
	}
	return id.CredentialID(found), nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient id.Identity) ([]id.CredentialID, error) {
	return s.listIDs(ctx, `SELECT id FROM credentials WHERE recipient = $1 ORDER BY id`, recipient.String())
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer id.Identity) ([]id.CredentialID, error) {
	return s.listIDs(ctx, `SELECT id FROM credentials WHERE issuer = $1 ORDER BY id`, issuer.String())
}

func (s *PostgresStore) ListByType(ctx context.Context, credentialType string) ([]id.CredentialID, error) {
	return s.listIDs(ctx, `SELECT id FROM credentials WHERE credential_type = $1 ORDER BY id`, credentialType)
}

func (s *PostgresStore) listIDs(ctx context.Context, query string, arg any) ([]id.CredentialID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list credential ids: %w", err)
	}
	defer rows.Close()

	ids := []id.CredentialID{}
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan credential id: %w", err)
		}
		ids = append(ids, id.CredentialID(n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential ids: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		cred      Credential
		credID    int64
		issuer    string
		recipient string
		status    string
		expiresAt sql.NullTime
	)
	err := row.Scan(&credID, &issuer, &recipient, &cred.Type, &cred.Payload, &cred.MetadataURI,
		&cred.IssuedAt, &expiresAt, &status, &cred.ContentHash, &cred.RevocationReason, &cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cred.ID = id.CredentialID(credID)
	cred.Issuer = id.Identity(issuer)
	cred.Recipient = id.Identity(recipient)
	cred.Status = Status(status)
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}
	return &cred, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
