package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateSsoConnectorParams struct {
	TenantID      pgtype.UUID
	Alias         string
	ProviderType  string
	UpstreamAlias string
	Config        json.RawMessage
}

func (q *Queries) CreateSsoConnector(ctx context.Context, arg CreateSsoConnectorParams) (SsoConnector, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO sso_connectors (tenant_id, alias, provider_type, enabled, upstream_alias, config, created_at, updated_at)
VALUES ($1, $2, $3, true, $4, $5, now(), now())
RETURNING id, tenant_id, alias, provider_type, enabled, upstream_alias, config, created_at, updated_at`,
		arg.TenantID, arg.Alias, arg.ProviderType, arg.UpstreamAlias, arg.Config)
	var c SsoConnector
	err := row.Scan(&c.ID, &c.TenantID, &c.Alias, &c.ProviderType, &c.Enabled, &c.UpstreamAlias, &c.Config, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) ListSsoConnectorsForTenant(ctx context.Context, tenantID pgtype.UUID) ([]SsoConnector, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, alias, provider_type, enabled, upstream_alias, config, created_at, updated_at
FROM sso_connectors WHERE tenant_id = $1 ORDER BY alias ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SsoConnector
	for rows.Next() {
		var c SsoConnector
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Alias, &c.ProviderType, &c.Enabled, &c.UpstreamAlias, &c.Config, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) AddSsoDomain(ctx context.Context, connectorID pgtype.UUID, domain string) (SsoDomain, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO sso_domains (connector_id, domain) VALUES ($1, $2)
RETURNING id, connector_id, domain`, connectorID, domain)
	var d SsoDomain
	err := row.Scan(&d.ID, &d.ConnectorID, &d.Domain)
	return d, err
}

// GetEnabledConnectorByDomain backs `enterprise-sso/discovery`: resolve the
// connector bound to an email's domain, restricted to enabled connectors.
func (q *Queries) GetEnabledConnectorByDomain(ctx context.Context, domain string) (SsoConnector, error) {
	row := q.db.QueryRow(ctx, `
SELECT c.id, c.tenant_id, c.alias, c.provider_type, c.enabled, c.upstream_alias, c.config, c.created_at, c.updated_at
FROM sso_connectors c
JOIN sso_domains d ON d.connector_id = c.id
WHERE d.domain = $1 AND c.enabled = true`, domain)
	var c SsoConnector
	err := row.Scan(&c.ID, &c.TenantID, &c.Alias, &c.ProviderType, &c.Enabled, &c.UpstreamAlias, &c.Config, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) GetSsoConnectorByTenantAndAlias(ctx context.Context, tenantID pgtype.UUID, alias string) (SsoConnector, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, tenant_id, alias, provider_type, enabled, upstream_alias, config, created_at, updated_at
FROM sso_connectors WHERE tenant_id = $1 AND upstream_alias = $2 AND enabled = true`, tenantID, alias)
	var c SsoConnector
	err := row.Scan(&c.ID, &c.TenantID, &c.Alias, &c.ProviderType, &c.Enabled, &c.UpstreamAlias, &c.Config, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
