package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateActionParams struct {
	TenantID       pgtype.UUID
	Name           string
	Trigger        string
	Script         string
	Enabled        bool
	ExecutionOrder int32
	TimeoutMs      int32
}

func (q *Queries) CreateAction(ctx context.Context, arg CreateActionParams) (Action, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO actions (tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
RETURNING id, tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at`,
		arg.TenantID, arg.Name, arg.Trigger, arg.Script, arg.Enabled, arg.ExecutionOrder, arg.TimeoutMs)
	var a Action
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Script, &a.Enabled, &a.ExecutionOrder, &a.TimeoutMs, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

type UpdateActionParams struct {
	ID             pgtype.UUID
	Name           string
	Script         string
	Enabled        bool
	ExecutionOrder int32
	TimeoutMs      int32
}

func (q *Queries) UpdateAction(ctx context.Context, arg UpdateActionParams) (Action, error) {
	row := q.db.QueryRow(ctx, `
UPDATE actions SET name = $2, script = $3, enabled = $4, execution_order = $5, timeout_ms = $6, updated_at = now()
WHERE id = $1
RETURNING id, tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at`,
		arg.ID, arg.Name, arg.Script, arg.Enabled, arg.ExecutionOrder, arg.TimeoutMs)
	var a Action
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Script, &a.Enabled, &a.ExecutionOrder, &a.TimeoutMs, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (q *Queries) GetActionByID(ctx context.Context, id pgtype.UUID) (Action, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at
FROM actions WHERE id = $1`, id)
	var a Action
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Script, &a.Enabled, &a.ExecutionOrder, &a.TimeoutMs, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// ListEnabledActionsByTrigger returns enabled actions for a tenant+trigger
// sorted by execution_order then id, exactly as the Actions Engine requires.
func (q *Queries) ListEnabledActionsByTrigger(ctx context.Context, tenantID pgtype.UUID, trigger string) ([]Action, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at
FROM actions
WHERE tenant_id = $1 AND trigger = $2 AND enabled = true
ORDER BY execution_order ASC, id ASC`, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Script, &a.Enabled, &a.ExecutionOrder, &a.TimeoutMs, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) ListActionsForTenant(ctx context.Context, tenantID pgtype.UUID) ([]Action, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, name, trigger, script, enabled, execution_order, timeout_ms, created_at, updated_at
FROM actions WHERE tenant_id = $1 ORDER BY trigger ASC, execution_order ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Trigger, &a.Script, &a.Enabled, &a.ExecutionOrder, &a.TimeoutMs, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteAction(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM actions WHERE id = $1`, id)
	return err
}

type CreateActionExecutionParams struct {
	ActionID   pgtype.UUID
	Success    bool
	DurationMs int64
	ErrMessage pgtype.Text
	Console    pgtype.Text
}

func (q *Queries) CreateActionExecution(ctx context.Context, arg CreateActionExecutionParams) (ActionExecution, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO action_executions (action_id, success, duration_ms, err_message, console, ran_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, action_id, success, duration_ms, err_message, console, ran_at`,
		arg.ActionID, arg.Success, arg.DurationMs, arg.ErrMessage, arg.Console)
	var e ActionExecution
	err := row.Scan(&e.ID, &e.ActionID, &e.Success, &e.DurationMs, &e.ErrMessage, &e.Console, &e.RanAt)
	return e, err
}

func (q *Queries) ListExecutionsForAction(ctx context.Context, actionID pgtype.UUID) ([]ActionExecution, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, action_id, success, duration_ms, err_message, console, ran_at
FROM action_executions WHERE action_id = $1 ORDER BY ran_at DESC`, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActionExecution
	for rows.Next() {
		var e ActionExecution
		if err := rows.Scan(&e.ID, &e.ActionID, &e.Success, &e.DurationMs, &e.ErrMessage, &e.Console, &e.RanAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
