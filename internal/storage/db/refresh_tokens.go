package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateRefreshTokenParams struct {
	SessionID pgtype.UUID
	UserID    pgtype.UUID
	TenantID  pgtype.UUID
	FamilyID  pgtype.UUID
	TokenHash string
	Kind      string
	ExpiresAt pgtype.Timestamptz
	IpAddress pgtype.Text
	UserAgent pgtype.Text
}

func (q *Queries) CreateRefreshToken(ctx context.Context, arg CreateRefreshTokenParams) (RefreshToken, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO refresh_tokens (session_id, user_id, tenant_id, family_id, token_hash, kind, is_revoked, expires_at, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8, $9, now())
RETURNING id, session_id, user_id, tenant_id, family_id, token_hash, kind, is_revoked, revoked_at, expires_at, ip_address, user_agent, created_at`,
		arg.SessionID, arg.UserID, arg.TenantID, arg.FamilyID, arg.TokenHash, arg.Kind, arg.ExpiresAt, arg.IpAddress, arg.UserAgent)
	var t RefreshToken
	err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.TenantID, &t.FamilyID, &t.TokenHash, &t.Kind, &t.IsRevoked, &t.RevokedAt, &t.ExpiresAt, &t.IpAddress, &t.UserAgent, &t.CreatedAt)
	return t, err
}

func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, session_id, user_id, tenant_id, family_id, token_hash, kind, is_revoked, revoked_at, expires_at, ip_address, user_agent, created_at
FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	var t RefreshToken
	err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.TenantID, &t.FamilyID, &t.TokenHash, &t.Kind, &t.IsRevoked, &t.RevokedAt, &t.ExpiresAt, &t.IpAddress, &t.UserAgent, &t.CreatedAt)
	return t, err
}

type RotateRefreshTokenParams struct {
	OldTokenHash string
	NewTokenHash string
	ExpiresAt    pgtype.Timestamptz
	IpAddress    pgtype.Text
	UserAgent    pgtype.Text
}

// RotateRefreshToken marks the old hash revoked and inserts the replacement
// bound to the same session/family, mirroring the reuse-detection rotation
// the teacher implements for its single refresh-token kind.
func (q *Queries) RotateRefreshToken(ctx context.Context, arg RotateRefreshTokenParams) (RefreshToken, error) {
	old, err := q.GetRefreshTokenByHash(ctx, arg.OldTokenHash)
	if err != nil {
		return RefreshToken{}, err
	}
	if _, err := q.db.Exec(ctx, `
UPDATE refresh_tokens SET is_revoked = true, revoked_at = now() WHERE token_hash = $1`, arg.OldTokenHash); err != nil {
		return RefreshToken{}, err
	}
	return q.CreateRefreshToken(ctx, CreateRefreshTokenParams{
		SessionID: old.SessionID,
		UserID:    old.UserID,
		TenantID:  old.TenantID,
		FamilyID:  old.FamilyID,
		TokenHash: arg.NewTokenHash,
		Kind:      old.Kind,
		ExpiresAt: arg.ExpiresAt,
		IpAddress: arg.IpAddress,
		UserAgent: arg.UserAgent,
	})
}

// RevokeTokenFamily is the "nuclear option": every token descending from the
// same family_id is revoked, killing the whole refresh lineage on reuse.
func (q *Queries) RevokeTokenFamily(ctx context.Context, familyID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
UPDATE refresh_tokens SET is_revoked = true, revoked_at = now() WHERE family_id = $1 AND is_revoked = false`, familyID)
	return err
}

func (q *Queries) RevokeRefreshTokensForSession(ctx context.Context, sessionID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
UPDATE refresh_tokens SET is_revoked = true, revoked_at = now() WHERE session_id = $1 AND is_revoked = false`, sessionID)
	return err
}

// CleanExpiredRefreshTokens deletes rows past expiry whether or not they
// were ever revoked; a revoked-but-unexpired row stays (still useful for
// reuse-detection lookups), so this only reclaims rows no lookup path can
// still reference.
func (q *Queries) CleanExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
