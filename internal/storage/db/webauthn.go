package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateWebauthnCredentialParams struct {
	UserID       pgtype.UUID
	CredentialID []byte
	PublicKey    []byte
	Label        pgtype.Text
	Aaguid       pgtype.Text
	SignCount    int64
}

func (q *Queries) CreateWebauthnCredential(ctx context.Context, arg CreateWebauthnCredentialParams) (WebauthnCredential, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO webauthn_credentials (user_id, credential_id, public_key, label, aaguid, sign_count, created_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING id, user_id, credential_id, public_key, label, aaguid, sign_count, created_at, last_used_at`,
		arg.UserID, arg.CredentialID, arg.PublicKey, arg.Label, arg.Aaguid, arg.SignCount)
	var c WebauthnCredential
	err := row.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.Label, &c.Aaguid, &c.SignCount, &c.CreatedAt, &c.LastUsedAt)
	return c, err
}

func (q *Queries) ListWebauthnCredentialsForUser(ctx context.Context, userID pgtype.UUID) ([]WebauthnCredential, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, user_id, credential_id, public_key, label, aaguid, sign_count, created_at, last_used_at
FROM webauthn_credentials WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebauthnCredential
	for rows.Next() {
		var c WebauthnCredential
		if err := rows.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.Label, &c.Aaguid, &c.SignCount, &c.CreatedAt, &c.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetWebauthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (WebauthnCredential, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, user_id, credential_id, public_key, label, aaguid, sign_count, created_at, last_used_at
FROM webauthn_credentials WHERE credential_id = $1`, credentialID)
	var c WebauthnCredential
	err := row.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.Label, &c.Aaguid, &c.SignCount, &c.CreatedAt, &c.LastUsedAt)
	return c, err
}

func (q *Queries) UpdateWebauthnSignCount(ctx context.Context, id pgtype.UUID, signCount int64) error {
	_, err := q.db.Exec(ctx, `
UPDATE webauthn_credentials SET sign_count = $2, last_used_at = now() WHERE id = $1`, id, signCount)
	return err
}

// DeleteWebauthnCredential scopes the delete to the owning user so a caller
// can never remove a credential they don't own.
func (q *Queries) DeleteWebauthnCredential(ctx context.Context, id, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM webauthn_credentials WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}
