package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "attesta/pkg/domain"
	txcontext "attesta/pkg/platform/tx"
)

// PostgresStore persists audit events.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, action, actor, subject, credential_id, detail, client_ip, client_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var credID sql.NullInt64
	if !event.CredentialID.IsZero() {
		credID = sql.NullInt64{Int64: int64(event.CredentialID), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID, string(event.Action), event.Actor.String(), event.Subject.String(),
		credID, event.Detail, event.ClientIP, event.ClientAgent, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

const auditColumns = `id, action, actor, subject, credential_id, detail, client_ip, client_agent, occurred_at`

func (s *PostgresStore) ListByCredential(ctx context.Context, credID id.CredentialID) ([]Event, error) {
	return s.list(ctx, `SELECT `+auditColumns+` FROM audit_events WHERE credential_id = $1 ORDER BY occurred_at`, int64(credID))
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor id.Identity) ([]Event, error) {
	return s.list(ctx, `SELECT `+auditColumns+` FROM audit_events WHERE actor = $1 ORDER BY occurred_at`, actor.String())
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			action  string
			actor   string
			subject string
			credID  sql.NullInt64
		)
		err := rows.Scan(&event.ID, &action, &actor, &subject, &credID,
			&event.Detail, &event.ClientIP, &event.ClientAgent, &event.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = Action(action)
		event.Actor = id.Identity(actor)
		event.Subject = id.Identity(subject)
		if credID.Valid {
			event.CredentialID = id.CredentialID(credID.Int64)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
