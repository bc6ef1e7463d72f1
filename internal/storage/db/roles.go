package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateRoleParams struct {
	ServiceID pgtype.UUID
	Name      string
	ParentID  pgtype.UUID
}

func (q *Queries) CreateRole(ctx context.Context, arg CreateRoleParams) (Role, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO roles (service_id, name, parent_id)
VALUES ($1, $2, $3)
RETURNING id, service_id, name, parent_id, created_at`,
		arg.ServiceID, arg.Name, arg.ParentID)
	var r Role
	err := row.Scan(&r.ID, &r.ServiceID, &r.Name, &r.ParentID, &r.CreatedAt)
	return r, err
}

func (q *Queries) GetRoleByID(ctx context.Context, id pgtype.UUID) (Role, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, service_id, name, parent_id, created_at FROM roles WHERE id = $1`, id)
	var r Role
	err := row.Scan(&r.ID, &r.ServiceID, &r.Name, &r.ParentID, &r.CreatedAt)
	return r, err
}

func (q *Queries) ListRolesByService(ctx context.Context, serviceID pgtype.UUID) ([]Role, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, service_id, name, parent_id, created_at FROM roles WHERE service_id = $1 ORDER BY name ASC`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Name, &r.ParentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRoleParentChain walks up the single-inheritance DAG starting at roleID,
// stopping at a bounded depth (8). Used both to materialize a role closure
// and, at write time with the candidate parent as the starting point, to
// reject cycles before insert.
func (q *Queries) GetRoleParentChain(ctx context.Context, roleID pgtype.UUID, maxDepth int32) ([]Role, error) {
	rows, err := q.db.Query(ctx, `
WITH RECURSIVE chain AS (
	SELECT id, service_id, name, parent_id, created_at, 0 AS depth
	FROM roles WHERE id = $1
	UNION ALL
	SELECT r.id, r.service_id, r.name, r.parent_id, r.created_at, c.depth + 1
	FROM roles r
	JOIN chain c ON r.id = c.parent_id
	WHERE c.depth + 1 <= $2
)
SELECT id, service_id, name, parent_id, created_at FROM chain ORDER BY depth ASC`, roleID, maxDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Name, &r.ParentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRolesForMembership returns the roles directly assigned to a
// (tenant, user) pair, restricted to a given service — the RBAC stage's
// starting point before closure expansion.
func (q *Queries) ListRolesForMembership(ctx context.Context, tenantID, userID, serviceID pgtype.UUID) ([]Role, error) {
	rows, err := q.db.Query(ctx, `
SELECT r.id, r.service_id, r.name, r.parent_id, r.created_at
FROM user_tenant_roles utr
JOIN roles r ON r.id = utr.role_id
WHERE utr.tenant_id = $1 AND utr.user_id = $2 AND r.service_id = $3`, tenantID, userID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Name, &r.ParentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) AssignRole(ctx context.Context, tenantID, userID, roleID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO user_tenant_roles (tenant_id, user_id, role_id, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (tenant_id, user_id, role_id) DO NOTHING`, tenantID, userID, roleID)
	return err
}

func (q *Queries) UnassignRole(ctx context.Context, tenantID, userID, roleID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
DELETE FROM user_tenant_roles WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`, tenantID, userID, roleID)
	return err
}
