package policy

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/storage/db"
)

// Orchestrator drives the publish/rollback state machine described in
// §4.3: a version is born draft; publish(v) moves v to published and the
// previously-published version (if any) to archived, atomically; rollback(v)
// is publish(v) applied to an already-archived version. Unlike Engine
// (read path, pool-bound Queries), the orchestrator always opens its own
// transaction because PublishVersion refuses to run outside one.
type Orchestrator struct {
	pool *pgxpool.Pool
}

func NewOrchestrator(pool *pgxpool.Pool) *Orchestrator {
	return &Orchestrator{pool: pool}
}

// Draft creates a new draft version with the next monotonic version number.
func (o *Orchestrator) Draft(ctx context.Context, policySetID uuid.UUID, document json.RawMessage, changeNote string) (db.PolicySetVersion, error) {
	q := db.New(o.pool)
	return q.CreatePolicySetVersion(ctx, db.CreatePolicySetVersionParams{
		PolicySetID: fromUUID(policySetID),
		Document:    document,
		ChangeNote:  pgtype.Text{String: changeNote, Valid: changeNote != ""},
	})
}

// Publish atomically transitions versionID to published, archiving whatever
// was previously published for the same policy set. Both writes happen in
// one transaction so a crash between them can never leave two published
// versions, nor zero where one existed before.
func (o *Orchestrator) Publish(ctx context.Context, policySetID, versionID uuid.UUID) error {
	return pgx.BeginFunc(ctx, o.pool, func(tx pgx.Tx) error {
		q := db.New(tx)
		return q.PublishVersion(ctx, fromUUID(policySetID), fromUUID(versionID))
	})
}

// Rollback is defined by §4.3 as equivalent to Publish on an archived
// version: it re-runs the exact same atomic transition.
func (o *Orchestrator) Rollback(ctx context.Context, policySetID, versionID uuid.UUID) error {
	return o.Publish(ctx, policySetID, versionID)
}

// SetMode changes a policy set's enforcement mode (disabled/shadow/enforce);
// does not touch which version is published.
func (o *Orchestrator) SetMode(ctx context.Context, policySetID uuid.UUID, mode Mode) error {
	q := db.New(o.pool)
	return q.SetPolicyMode(ctx, fromUUID(policySetID), string(mode))
}

func (o *Orchestrator) List(ctx context.Context, policySetID uuid.UUID) ([]db.PolicySetVersion, error) {
	q := db.New(o.pool)
	return q.ListPolicySetVersions(ctx, fromUUID(policySetID))
}
