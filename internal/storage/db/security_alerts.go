package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateSecurityAlertParams struct {
	TenantID  pgtype.UUID
	UserID    pgtype.UUID
	AlertType string
	Severity  string
	Details   json.RawMessage
}

func (q *Queries) CreateSecurityAlert(ctx context.Context, arg CreateSecurityAlertParams) (SecurityAlert, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO security_alerts (tenant_id, user_id, alert_type, severity, details, created_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, tenant_id, user_id, alert_type, severity, details, resolved_at, resolved_by, created_at`,
		arg.TenantID, arg.UserID, arg.AlertType, arg.Severity, arg.Details)
	var a SecurityAlert
	err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &a.AlertType, &a.Severity, &a.Details, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt)
	return a, err
}

// ExistsRecentAlert implements the 30-min dedup window per (user, type).
func (q *Queries) ExistsRecentAlert(ctx context.Context, userID pgtype.UUID, alertType string, since pgtype.Timestamptz) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM security_alerts WHERE user_id = $1 AND alert_type = $2 AND created_at >= $3)`,
		userID, alertType, since).Scan(&exists)
	return exists, err
}

func (q *Queries) ResolveAlert(ctx context.Context, id, resolvedBy pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
UPDATE security_alerts SET resolved_at = now(), resolved_by = $2 WHERE id = $1`, id, resolvedBy)
	return err
}

func (q *Queries) ListAlertsForTenant(ctx context.Context, tenantID pgtype.UUID) ([]SecurityAlert, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, user_id, alert_type, severity, details, resolved_at, resolved_by, created_at
FROM security_alerts WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SecurityAlert
	for rows.Next() {
		var a SecurityAlert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UserID, &a.AlertType, &a.Severity, &a.Details, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
