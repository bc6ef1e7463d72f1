package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateServiceParams struct {
	TenantID     pgtype.UUID // invalid ⇒ global
	DisplayName  string
	BaseUrl      string
	RedirectUris []string
	LogoutUris   []string
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO services (tenant_id, display_name, base_url, redirect_uris, logout_uris, status)
VALUES ($1, $2, $3, $4, $5, 'active')
RETURNING id, tenant_id, display_name, base_url, redirect_uris, logout_uris, status, created_at, updated_at`,
		arg.TenantID, arg.DisplayName, arg.BaseUrl, arg.RedirectUris, arg.LogoutUris)
	var s Service
	err := row.Scan(&s.ID, &s.TenantID, &s.DisplayName, &s.BaseUrl, &s.RedirectUris, &s.LogoutUris, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) GetServiceByID(ctx context.Context, id pgtype.UUID) (Service, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, tenant_id, display_name, base_url, redirect_uris, logout_uris, status, created_at, updated_at
FROM services WHERE id = $1`, id)
	var s Service
	err := row.Scan(&s.ID, &s.TenantID, &s.DisplayName, &s.BaseUrl, &s.RedirectUris, &s.LogoutUris, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) ListServicesByTenant(ctx context.Context, tenantID pgtype.UUID) ([]Service, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, display_name, base_url, redirect_uris, logout_uris, status, created_at, updated_at
FROM services WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.DisplayName, &s.BaseUrl, &s.RedirectUris, &s.LogoutUris, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) ListGlobalServices(ctx context.Context) ([]Service, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, display_name, base_url, redirect_uris, logout_uris, status, created_at, updated_at
FROM services WHERE tenant_id IS NULL ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.DisplayName, &s.BaseUrl, &s.RedirectUris, &s.LogoutUris, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type UpdateServiceParams struct {
	ID           pgtype.UUID
	DisplayName  string
	BaseUrl      string
	RedirectUris []string
	LogoutUris   []string
}

func (q *Queries) UpdateService(ctx context.Context, arg UpdateServiceParams) error {
	_, err := q.db.Exec(ctx, `
UPDATE services SET display_name = $2, base_url = $3, redirect_uris = $4, logout_uris = $5, updated_at = now()
WHERE id = $1`, arg.ID, arg.DisplayName, arg.BaseUrl, arg.RedirectUris, arg.LogoutUris)
	return err
}

// EnableTenantService is an idempotent upsert: repeated calls with the same
// (tenant_id, service_id, enabled) leave exactly one row and advance updated_at.
func (q *Queries) EnableTenantService(ctx context.Context, tenantID, serviceID pgtype.UUID, enabled bool) (TenantService, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO tenant_services (tenant_id, service_id, enabled, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (tenant_id, service_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
RETURNING tenant_id, service_id, enabled, created_at, updated_at`, tenantID, serviceID, enabled)
	var ts TenantService
	err := row.Scan(&ts.TenantID, &ts.ServiceID, &ts.Enabled, &ts.CreatedAt, &ts.UpdatedAt)
	return ts, err
}

func (q *Queries) GetTenantService(ctx context.Context, tenantID, serviceID pgtype.UUID) (TenantService, error) {
	row := q.db.QueryRow(ctx, `
SELECT tenant_id, service_id, enabled, created_at, updated_at
FROM tenant_services WHERE tenant_id = $1 AND service_id = $2`, tenantID, serviceID)
	var ts TenantService
	err := row.Scan(&ts.TenantID, &ts.ServiceID, &ts.Enabled, &ts.CreatedAt, &ts.UpdatedAt)
	return ts, err
}

func (q *Queries) ListEnabledServicesForTenant(ctx context.Context, tenantID pgtype.UUID) ([]Service, error) {
	rows, err := q.db.Query(ctx, `
SELECT s.id, s.tenant_id, s.display_name, s.base_url, s.redirect_uris, s.logout_uris, s.status, s.created_at, s.updated_at
FROM services s
JOIN tenant_services ts ON ts.service_id = s.id
WHERE ts.tenant_id = $1 AND ts.enabled = true
ORDER BY s.display_name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.DisplayName, &s.BaseUrl, &s.RedirectUris, &s.LogoutUris, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
