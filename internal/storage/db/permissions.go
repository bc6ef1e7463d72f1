package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreatePermissionParams struct {
	ServiceID pgtype.UUID
	Code      string
}

func (q *Queries) CreatePermission(ctx context.Context, arg CreatePermissionParams) (Permission, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO permissions (service_id, code) VALUES ($1, $2)
RETURNING id, service_id, code, created_at`, arg.ServiceID, arg.Code)
	var p Permission
	err := row.Scan(&p.ID, &p.ServiceID, &p.Code, &p.CreatedAt)
	return p, err
}

func (q *Queries) ListPermissionsByService(ctx context.Context, serviceID pgtype.UUID) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, service_id, code, created_at FROM permissions WHERE service_id = $1 ORDER BY code ASC`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ServiceID, &p.Code, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GrantPermission(ctx context.Context, roleID, permissionID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

func (q *Queries) RevokePermission(ctx context.Context, roleID, permissionID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// ListPermissionCodesForRoles returns the union of permission codes granted
// to any of the given role ids — the final step of RBAC closure expansion.
func (q *Queries) ListPermissionCodesForRoles(ctx context.Context, roleIDs []pgtype.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, `
SELECT DISTINCT p.code
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = ANY($1)
ORDER BY p.code ASC`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
