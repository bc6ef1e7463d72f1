package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

type AuditLog struct {
	ID        pgtype.UUID
	ActorID   pgtype.UUID
	TargetID  pgtype.UUID
	TenantID  pgtype.UUID
	SessionID pgtype.UUID
	Action    string
	Metadata  json.RawMessage
	CreatedAt pgtype.Timestamptz
}

type CreateAuditLogParams struct {
	ActorID   pgtype.UUID
	TargetID  pgtype.UUID
	TenantID  pgtype.UUID
	SessionID pgtype.UUID
	Action    string
	Metadata  json.RawMessage
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO audit_logs (actor_id, target_id, tenant_id, session_id, action, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())`,
		arg.ActorID, arg.TargetID, arg.TenantID, arg.SessionID, arg.Action, arg.Metadata)
	return err
}

type ListAuditLogsByTenantParams struct {
	TenantID pgtype.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListAuditLogsByTenant(ctx context.Context, arg ListAuditLogsByTenantParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, actor_id, target_id, tenant_id, session_id, action, metadata, created_at
FROM audit_logs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg.TenantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.ID, &a.ActorID, &a.TargetID, &a.TenantID, &a.SessionID, &a.Action, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type ListAuditLogsByUserParams struct {
	ActorID pgtype.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListAuditLogsByUser(ctx context.Context, arg ListAuditLogsByUserParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, actor_id, target_id, tenant_id, session_id, action, metadata, created_at
FROM audit_logs WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg.ActorID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.ID, &a.ActorID, &a.TargetID, &a.TenantID, &a.SessionID, &a.Action, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
