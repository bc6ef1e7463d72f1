package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateTenantParams struct {
	Slug              string
	DisplayName       string
	OwningEmailDomain pgtype.Text
}

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO tenants (slug, display_name, status, owning_email_domain)
VALUES ($1, $2, 'active', $3)
RETURNING id, slug, display_name, status, owning_email_domain, created_at, updated_at`,
		arg.Slug, arg.DisplayName, arg.OwningEmailDomain)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.OwningEmailDomain, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) GetTenantByID(ctx context.Context, id pgtype.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, slug, display_name, status, owning_email_domain, created_at, updated_at
FROM tenants WHERE id = $1`, id)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.OwningEmailDomain, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, slug, display_name, status, owning_email_domain, created_at, updated_at
FROM tenants WHERE slug = $1`, slug)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.OwningEmailDomain, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) GetTenantByEmailDomain(ctx context.Context, domain string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, slug, display_name, status, owning_email_domain, created_at, updated_at
FROM tenants WHERE owning_email_domain = $1`, domain)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.OwningEmailDomain, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, slug, display_name, status, owning_email_domain, created_at, updated_at
FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Slug, &t.DisplayName, &t.Status, &t.OwningEmailDomain, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateTenantStatus(ctx context.Context, id pgtype.UUID, status string) error {
	_, err := q.db.Exec(ctx, `UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// DeleteTenant removes a tenant; FK constraints with ON DELETE CASCADE take
// care of memberships/services/roles/permissions/policies/actions.
func (q *Queries) DeleteTenant(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	return err
}

// CountTenantOwners counts a tenant's owner memberships. UpdateMemberRole and
// RemoveMember enforce the "each tenant has ≥1 owner" invariant through
// isSoleOwner and do not call it.
func (q *Queries) CountTenantOwners(ctx context.Context, tenantID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
SELECT count(*) FROM tenant_memberships WHERE tenant_id = $1 AND role = 'owner'`, tenantID).Scan(&n)
	return n, err
}
