// Package db is a hand-authored, sqlc-shaped query layer: a DBTX interface
// satisfied by both *pgxpool.Pool and pgx.Tx, a Queries struct wrapping it,
// and one typed method per query. Generated code would look like this; we
// keep the same shape so callers (WithTx, WithRLS, tests with a fake DBTX)
// don't need to know whether they're inside a transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a copy of Queries bound to tx, for call sites that already
// hold a transaction (e.g. storage.WithTenantContext's callback).
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
