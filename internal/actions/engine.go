package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

// Engine loads and runs a tenant's actions at a trigger point.
type Engine struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEngine(pool *pgxpool.Pool, log *slog.Logger) *Engine {
	return &Engine{pool: pool, log: log}
}

// Run executes every enabled action registered for (tenantID, trigger), in
// execution_order then id. For a pre-* trigger, the first action that
// errors aborts the pipeline and its error is surfaced to the caller (e.g.
// to block registration). For a post-* trigger, an error is recorded but
// the pipeline continues, and that action's claims mutations are simply
// dropped — the next action (and the caller) sees the context as it stood
// before that action ran.
func (e *Engine) Run(ctx context.Context, tenantID pgtype.UUID, trigger Trigger, input *ExecutionContext) (*ExecutionContext, error) {
	q := db.New(e.pool)
	rows, err := q.ListEnabledActionsByTrigger(ctx, tenantID, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("listing actions for trigger %s: %w", trigger, err)
	}

	current := cloneContext(input)

	for _, a := range rows {
		timeout := time.Duration(a.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		if timeout > MaxTimeout {
			timeout = MaxTimeout
		}

		start := time.Now()
		result := runScript(ctx, a.Script, cloneContext(current), timeout, DefaultMemoryCapBytes)
		duration := time.Since(start)

		e.record(ctx, q, a.ID, result, duration)

		if result.err != nil {
			e.log.Warn("action_execution_failed",
				"action_id", a.ID.Bytes, "trigger", trigger, "error", result.err)

			if trigger.isPre() {
				return current, apperr.Wrap(apperr.KindBadRequest, "action_rejected",
					"ACTION_REJECTED", scriptErrorMessage(result.err), result.err)
			}
			// post-* trigger: log-and-continue, claims mutations dropped.
			continue
		}

		current = result.context
	}

	return current, nil
}

func (e *Engine) record(ctx context.Context, q *db.Queries, actionID pgtype.UUID, result runResult, duration time.Duration) {
	var errMsg pgtype.Text
	if result.err != nil {
		errMsg = pgtype.Text{String: result.err.Error(), Valid: true}
	}
	console := strings.Join(result.console, "\n")

	_, err := q.CreateActionExecution(ctx, db.CreateActionExecutionParams{
		ActionID:   actionID,
		Success:    result.err == nil,
		DurationMs: duration.Milliseconds(),
		ErrMessage: errMsg,
		Console:    pgtype.Text{String: console, Valid: console != ""},
	})
	if err != nil {
		e.log.Error("action_execution_record_failed", "action_id", actionID.Bytes, "error", err)
	}
}

// scriptErrorMessage surfaces a script's thrown error text to the caller
// for pre-* triggers, e.g. "block registration" with a reason.
func scriptErrorMessage(err error) string {
	if err == ErrSandboxKilled {
		return "action rejected the request"
	}
	return err.Error()
}
