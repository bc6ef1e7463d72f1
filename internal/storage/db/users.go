package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateUserParams struct {
	UpstreamSub string
	Email       string
	DisplayName pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO users (upstream_sub, email, display_name, mfa_enabled)
VALUES ($1, $2, $3, false)
RETURNING id, upstream_sub, email, display_name, mfa_enabled, created_at, updated_at`,
		arg.UpstreamSub, arg.Email, arg.DisplayName)
	var u User
	err := row.Scan(&u.ID, &u.UpstreamSub, &u.Email, &u.DisplayName, &u.MfaEnabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, upstream_sub, email, display_name, mfa_enabled, created_at, updated_at
FROM users WHERE id = $1`, id)
	var u User
	err := row.Scan(&u.ID, &u.UpstreamSub, &u.Email, &u.DisplayName, &u.MfaEnabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, upstream_sub, email, display_name, mfa_enabled, created_at, updated_at
FROM users WHERE email = $1`, email)
	var u User
	err := row.Scan(&u.ID, &u.UpstreamSub, &u.Email, &u.DisplayName, &u.MfaEnabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByUpstreamSub(ctx context.Context, sub string) (User, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, upstream_sub, email, display_name, mfa_enabled, created_at, updated_at
FROM users WHERE upstream_sub = $1`, sub)
	var u User
	err := row.Scan(&u.ID, &u.UpstreamSub, &u.Email, &u.DisplayName, &u.MfaEnabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type UpdateUserProfileParams struct {
	ID          pgtype.UUID
	DisplayName pgtype.Text
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET display_name = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.DisplayName)
	return err
}

func (q *Queries) SetUserMFAEnabled(ctx context.Context, id pgtype.UUID, enabled bool) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET mfa_enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	return err
}

func (q *Queries) UpdateUserEmail(ctx context.Context, id pgtype.UUID, email string) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET email = $2, updated_at = now() WHERE id = $1`, id, email)
	return err
}
