package actions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/storage/db"
)

// Spec is one entry in a batch upsert request: an Spec carrying an ID is
// treated as an update, and one without as a create.
type Spec struct {
	ID             *uuid.UUID
	Name           string
	Trigger        string
	Script         string
	Enabled        bool
	ExecutionOrder int32
	TimeoutMs      int32
}

// BatchError pairs a failed spec with its reason, keyed by its position in
// the request so a caller can reconcile without guessing which one failed.
type BatchError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult is §4.9's "three arrays {created, updated, errors}".
type BatchResult struct {
	Created []db.Action  `json:"created"`
	Updated []db.Action  `json:"updated"`
	Errors  []BatchError `json:"errors"`
}

// BatchUpsert applies specs independently, continuing past individual
// failures so AI-style callers can reconcile a large batch in one round
// trip instead of having one bad entry fail the whole request.
func BatchUpsert(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, specs []Spec) BatchResult {
	q := db.New(pool)
	pgTenantID := pgtype.UUID{Bytes: tenantID, Valid: true}

	result := BatchResult{
		Created: make([]db.Action, 0),
		Updated: make([]db.Action, 0),
		Errors:  make([]BatchError, 0),
	}

	for i, spec := range specs {
		if spec.ID != nil {
			updated, err := q.UpdateAction(ctx, db.UpdateActionParams{
				ID:             pgtype.UUID{Bytes: *spec.ID, Valid: true},
				Name:           spec.Name,
				Script:         spec.Script,
				Enabled:        spec.Enabled,
				ExecutionOrder: spec.ExecutionOrder,
				TimeoutMs:      spec.TimeoutMs,
			})
			if err != nil {
				result.Errors = append(result.Errors, BatchError{Index: i, Name: spec.Name, Error: err.Error()})
				continue
			}
			result.Updated = append(result.Updated, updated)
			continue
		}

		created, err := q.CreateAction(ctx, db.CreateActionParams{
			TenantID:       pgTenantID,
			Name:           spec.Name,
			Trigger:        spec.Trigger,
			Script:         spec.Script,
			Enabled:        spec.Enabled,
			ExecutionOrder: spec.ExecutionOrder,
			TimeoutMs:      spec.TimeoutMs,
		})
		if err != nil {
			result.Errors = append(result.Errors, BatchError{Index: i, Name: spec.Name, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, created)
	}

	return result
}
