package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateMembershipParams struct {
	TenantID pgtype.UUID
	UserID   pgtype.UUID
	Role     string
}

func (q *Queries) CreateMembership(ctx context.Context, arg CreateMembershipParams) (TenantMembership, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO tenant_memberships (tenant_id, user_id, role, joined_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (tenant_id, user_id) DO NOTHING
RETURNING tenant_id, user_id, role, joined_at`, arg.TenantID, arg.UserID, arg.Role)
	var m TenantMembership
	err := row.Scan(&m.TenantID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, err
}

func (q *Queries) GetMembership(ctx context.Context, tenantID, userID pgtype.UUID) (TenantMembership, error) {
	row := q.db.QueryRow(ctx, `
SELECT tenant_id, user_id, role, joined_at
FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	var m TenantMembership
	err := row.Scan(&m.TenantID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, err
}

// ListMembershipsForUser backs the "GET /tenants returns only the caller's
// memberships" rule when a request arrives bearing an Identity Token.
func (q *Queries) ListMembershipsForUser(ctx context.Context, userID pgtype.UUID) ([]TenantMembership, error) {
	rows, err := q.db.Query(ctx, `
SELECT tenant_id, user_id, role, joined_at
FROM tenant_memberships WHERE user_id = $1 ORDER BY joined_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TenantMembership
	for rows.Next() {
		var m TenantMembership
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type ListTenantMembersRow struct {
	UserID      pgtype.UUID
	Email       string
	DisplayName pgtype.Text
	Role        string
	JoinedAt    pgtype.Timestamptz
}

func (q *Queries) ListTenantMembers(ctx context.Context, tenantID pgtype.UUID) ([]ListTenantMembersRow, error) {
	rows, err := q.db.Query(ctx, `
SELECT u.id, u.email, u.display_name, m.role, m.joined_at
FROM tenant_memberships m
JOIN users u ON u.id = m.user_id
WHERE m.tenant_id = $1
ORDER BY m.joined_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListTenantMembersRow
	for rows.Next() {
		var r ListTenantMembersRow
		if err := rows.Scan(&r.UserID, &r.Email, &r.DisplayName, &r.Role, &r.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type UpdateMemberRoleParams struct {
	TenantID pgtype.UUID
	UserID   pgtype.UUID
	Role     string
}

// UpdateMemberRole changes a member's role, rejecting with ErrLastOwner
// when the member being demoted is the tenant's sole remaining owner.
func (q *Queries) UpdateMemberRole(ctx context.Context, arg UpdateMemberRoleParams) error {
	if arg.Role != "owner" {
		sole, err := q.isSoleOwner(ctx, arg.TenantID, arg.UserID)
		if err != nil {
			return err
		}
		if sole {
			return ErrLastOwner
		}
	}
	_, err := q.db.Exec(ctx, `
UPDATE tenant_memberships SET role = $3 WHERE tenant_id = $1 AND user_id = $2`,
		arg.TenantID, arg.UserID, arg.Role)
	return err
}

// RemoveMember removes a tenant membership, rejecting with ErrLastOwner
// when userID is the tenant's sole remaining owner.
func (q *Queries) RemoveMember(ctx context.Context, tenantID, userID pgtype.UUID) error {
	sole, err := q.isSoleOwner(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if sole {
		return ErrLastOwner
	}
	_, err = q.db.Exec(ctx, `DELETE FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	return err
}

// isSoleOwner reports whether userID is an owner of tenantID and no other
// owner exists for that tenant.
func (q *Queries) isSoleOwner(ctx context.Context, tenantID, userID pgtype.UUID) (bool, error) {
	var isOwner bool
	if err := q.db.QueryRow(ctx, `
SELECT role = 'owner' FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID).Scan(&isOwner); err != nil {
		return false, err
	}
	if !isOwner {
		return false, nil
	}
	var otherOwners int64
	if err := q.db.QueryRow(ctx, `
SELECT count(*) FROM tenant_memberships WHERE tenant_id = $1 AND user_id <> $2 AND role = 'owner'`,
		tenantID, userID).Scan(&otherOwners); err != nil {
		return false, err
	}
	return otherOwners == 0, nil
}
