package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

// ScopeTenant, ScopeService and ScopePlatform are the recognized
// PlatformSetting.ScopeType values; ScopePlatform rows carry an invalid
// ScopeID since there is exactly one platform scope.
const (
	ScopeTenant   = "tenant"
	ScopeService  = "service"
	ScopePlatform = "platform"
)

// GetSetting fetches one named document for a scope; callers get
// pgx.ErrNoRows through unchanged so they can distinguish "never set" from
// a lookup failure.
func (q *Queries) GetSetting(ctx context.Context, scopeType string, scopeID pgtype.UUID, key string) (PlatformSetting, error) {
	row := q.db.QueryRow(ctx, `
SELECT scope_type, scope_id, key, value, updated_at
FROM platform_settings
WHERE scope_type = $1 AND scope_id IS NOT DISTINCT FROM $2 AND key = $3`, scopeType, scopeID, key)
	var s PlatformSetting
	err := row.Scan(&s.ScopeType, &s.ScopeID, &s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

// UpsertSetting writes or replaces a named document for a scope.
func (q *Queries) UpsertSetting(ctx context.Context, scopeType string, scopeID pgtype.UUID, key string, value json.RawMessage) (PlatformSetting, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO platform_settings (scope_type, scope_id, key, value, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (scope_type, scope_id, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING scope_type, scope_id, key, value, updated_at`, scopeType, scopeID, key, value)
	var s PlatformSetting
	err := row.Scan(&s.ScopeType, &s.ScopeID, &s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

// ListSettingsByPrefix returns every setting for a scope whose key starts
// with prefix — used to list all "email_template:*" rows without a
// dedicated table per template.
func (q *Queries) ListSettingsByPrefix(ctx context.Context, scopeType string, scopeID pgtype.UUID, prefix string) ([]PlatformSetting, error) {
	rows, err := q.db.Query(ctx, `
SELECT scope_type, scope_id, key, value, updated_at
FROM platform_settings
WHERE scope_type = $1 AND scope_id IS NOT DISTINCT FROM $2 AND key LIKE $3 || '%'
ORDER BY key ASC`, scopeType, scopeID, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlatformSetting
	for rows.Next() {
		var s PlatformSetting
		if err := rows.Scan(&s.ScopeType, &s.ScopeID, &s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
