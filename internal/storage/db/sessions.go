package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateSessionParams struct {
	UserID    pgtype.UUID
	Device    pgtype.Text
	IpAddress pgtype.Text
	Location  pgtype.Text
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO sessions (user_id, device, ip_address, location, created_at, last_active_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING id, user_id, device, ip_address, location, created_at, last_active_at, revoked_at`,
		arg.UserID, arg.Device, arg.IpAddress, arg.Location)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Device, &s.IpAddress, &s.Location, &s.CreatedAt, &s.LastActiveAt, &s.RevokedAt)
	return s, err
}

func (q *Queries) GetSession(ctx context.Context, id pgtype.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, user_id, device, ip_address, location, created_at, last_active_at, revoked_at
FROM sessions WHERE id = $1`, id)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Device, &s.IpAddress, &s.Location, &s.CreatedAt, &s.LastActiveAt, &s.RevokedAt)
	return s, err
}

func (q *Queries) CountActiveSessions(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
SELECT count(*) FROM sessions WHERE user_id = $1 AND revoked_at IS NULL`, userID).Scan(&n)
	return n, err
}

// GetOldestActiveSession selects the row FOR UPDATE. Its caller,
// session.Manager.Create, serializes the cap eviction with an in-process
// per-user mutex; no database advisory lock is taken, and when run through
// the pool outside a transaction the row lock lasts only for this
// statement, so Managers in separate processes are not serialized.
func (q *Queries) GetOldestActiveSession(ctx context.Context, userID pgtype.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, user_id, device, ip_address, location, created_at, last_active_at, revoked_at
FROM sessions WHERE user_id = $1 AND revoked_at IS NULL
ORDER BY created_at ASC LIMIT 1 FOR UPDATE`, userID)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Device, &s.IpAddress, &s.Location, &s.CreatedAt, &s.LastActiveAt, &s.RevokedAt)
	return s, err
}

func (q *Queries) RevokeSessionByID(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

func (q *Queries) RevokeAllSessionsForUser(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

func (q *Queries) TouchSession(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE sessions SET last_active_at = now() WHERE id = $1`, id)
	return err
}

func (q *Queries) ListActiveSessionsForUser(ctx context.Context, userID pgtype.UUID) ([]Session, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, user_id, device, ip_address, location, created_at, last_active_at, revoked_at
FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Device, &s.IpAddress, &s.Location, &s.CreatedAt, &s.LastActiveAt, &s.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// withTx runs fn inside a transaction it begins on db itself, rather than
// requiring the caller to have begun one as PublishVersion does. No query
// method calls it; session creation and cap eviction in
// session.Manager.Create run as separate pool statements.
func withTx(ctx context.Context, db DBTX, fn func(tx pgx.Tx) error) error {
	pooler, ok := db.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return errNotInTransaction
	}
	tx, err := pooler.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
