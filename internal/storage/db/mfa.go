package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// UpsertUserMFASecret stores (or replaces) a user's TOTP secret and fresh
// set of hashed backup codes — called once at enrollment and again if the
// user regenerates their backup codes.
func (q *Queries) UpsertUserMFASecret(ctx context.Context, userID pgtype.UUID, secret string, backupCodes []string) (UserMFASecret, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO user_mfa_secrets (user_id, secret, backup_codes, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (user_id) DO UPDATE SET secret = $2, backup_codes = $3, updated_at = now()
RETURNING user_id, secret, backup_codes, created_at, updated_at`,
		userID, secret, backupCodes)
	var m UserMFASecret
	err := row.Scan(&m.UserID, &m.Secret, &m.BackupCodes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (q *Queries) GetUserMFASecret(ctx context.Context, userID pgtype.UUID) (UserMFASecret, error) {
	row := q.db.QueryRow(ctx, `
SELECT user_id, secret, backup_codes, created_at, updated_at
FROM user_mfa_secrets WHERE user_id = $1`, userID)
	var m UserMFASecret
	err := row.Scan(&m.UserID, &m.Secret, &m.BackupCodes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ConsumeBackupCode replaces the stored list with remaining — called after
// the caller has already verified the code matches one of the hashes and
// removed it. It returns only an error, not the updated list.
func (q *Queries) ConsumeBackupCode(ctx context.Context, userID pgtype.UUID, remaining []string) error {
	_, err := q.db.Exec(ctx, `
UPDATE user_mfa_secrets SET backup_codes = $2, updated_at = now() WHERE user_id = $1`, userID, remaining)
	return err
}

func (q *Queries) DeleteUserMFASecret(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM user_mfa_secrets WHERE user_id = $1`, userID)
	return err
}
