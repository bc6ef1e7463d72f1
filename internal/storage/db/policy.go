package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreatePolicySetParams struct {
	TenantID pgtype.UUID
	Name     string
	Mode     string
}

func (q *Queries) CreatePolicySet(ctx context.Context, arg CreatePolicySetParams) (PolicySet, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO policy_sets (tenant_id, name, mode) VALUES ($1, $2, $3)
RETURNING id, tenant_id, name, mode, created_at, updated_at`, arg.TenantID, arg.Name, arg.Mode)
	var p PolicySet
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Mode, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetPolicySetByTenant(ctx context.Context, tenantID pgtype.UUID) (PolicySet, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, tenant_id, name, mode, created_at, updated_at FROM policy_sets WHERE tenant_id = $1`, tenantID)
	var p PolicySet
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Mode, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) SetPolicyMode(ctx context.Context, id pgtype.UUID, mode string) error {
	_, err := q.db.Exec(ctx, `UPDATE policy_sets SET mode = $2, updated_at = now() WHERE id = $1`, id, mode)
	return err
}

type CreatePolicySetVersionParams struct {
	PolicySetID pgtype.UUID
	Document    json.RawMessage
	ChangeNote  pgtype.Text
}

// CreatePolicySetVersion inserts a new draft with the next monotonic version
// number for the set.
func (q *Queries) CreatePolicySetVersion(ctx context.Context, arg CreatePolicySetVersionParams) (PolicySetVersion, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO policy_set_versions (policy_set_id, version, status, document, change_note, created_at)
SELECT $1, COALESCE(MAX(version), 0) + 1, 'draft', $2, $3, now()
FROM policy_set_versions WHERE policy_set_id = $1
RETURNING id, policy_set_id, version, status, document, change_note, created_at`,
		arg.PolicySetID, arg.Document, arg.ChangeNote)
	var v PolicySetVersion
	err := row.Scan(&v.ID, &v.PolicySetID, &v.Version, &v.Status, &v.Document, &v.ChangeNote, &v.CreatedAt)
	return v, err
}

func (q *Queries) GetPublishedVersion(ctx context.Context, policySetID pgtype.UUID) (PolicySetVersion, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, policy_set_id, version, status, document, change_note, created_at
FROM policy_set_versions WHERE policy_set_id = $1 AND status = 'published'`, policySetID)
	var v PolicySetVersion
	err := row.Scan(&v.ID, &v.PolicySetID, &v.Version, &v.Status, &v.Document, &v.ChangeNote, &v.CreatedAt)
	return v, err
}

func (q *Queries) ListPolicySetVersions(ctx context.Context, policySetID pgtype.UUID) ([]PolicySetVersion, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, policy_set_id, version, status, document, change_note, created_at
FROM policy_set_versions WHERE policy_set_id = $1 ORDER BY version DESC`, policySetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PolicySetVersion
	for rows.Next() {
		var v PolicySetVersion
		if err := rows.Scan(&v.ID, &v.PolicySetID, &v.Version, &v.Status, &v.Document, &v.ChangeNote, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PublishVersion atomically moves versionID to published and the previously
// published version (if any) to archived. Both writes happen in one
// transaction borrowed from the caller's DBTX — callers must pass a *Queries
// already bound to a pgx.Tx (see policy.Orchestrator.Publish).
func (q *Queries) PublishVersion(ctx context.Context, policySetID, versionID pgtype.UUID) error {
	tx, ok := q.db.(pgx.Tx)
	if !ok {
		return errNotInTransaction
	}
	if _, err := tx.Exec(ctx, `
UPDATE policy_set_versions SET status = 'archived'
WHERE policy_set_id = $1 AND status = 'published' AND id != $2`, policySetID, versionID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
UPDATE policy_set_versions SET status = 'published' WHERE id = $1`, versionID)
	return err
}
