package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/storage"
	"github.com/auth9/auth9/internal/storage/db"
)

// QueriesKey carries the *db.Queries bound to the current request's RLS
// transaction (set by TenantScopeRLS) or, for routes with no tenant
// context, the plain pool-backed Queries (set once at router construction).
const QueriesKey contextKey = "queries"

// GetQueries returns the request-scoped Queries: inside TenantScopeRLS this
// is bound to a transaction with app.current_tenant set for Row Level
// Security; outside it, handlers fall back to whatever base Queries the
// router wired directly.
func GetQueries(ctx context.Context, fallback *db.Queries) *db.Queries {
	if q, ok := ctx.Value(QueriesKey).(*db.Queries); ok {
		return q
	}
	return fallback
}

// responseWriter wraps http.ResponseWriter to capture the status code a
// handler wrote, so TenantScopeRLS knows whether to commit or roll back.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// TenantScopeRLS wraps the entire downstream handler execution in one
// transaction with SET LOCAL app.current_tenant, enforcing Row Level
// Security for the duration of the request. It must run after RequireAuth
// has populated TenantIDKey from the verified token's tenant_id claim —
// unlike the teacher's header-derived version, the tenant boundary here is
// never client-supplied.
//
// Handlers must be idempotent and use GetQueries(ctx, fallback) rather than
// a raw pool-backed Queries, or RLS is not actually enforced.
func TenantScopeRLS(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := GetTenantID(r.Context())
			if err != nil {
				// No tenant bound (e.g. an Identity Token on a whitelisted
				// route) — proceed without RLS wrapping.
				next.ServeHTTP(w, r)
				return
			}

			SetSentryTenant(r.Context(), tenantID.String(), "token-derived")

			err = storage.WithTenantContext(r.Context(), pool, tenantID, func(tx pgx.Tx) error {
				ctx := context.WithValue(r.Context(), QueriesKey, db.New(tx))
				rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

				next.ServeHTTP(rw, r.WithContext(ctx))

				if rw.statusCode >= 400 {
					return http.ErrAbortHandler
				}
				return nil
			})

			if err != nil && err != http.ErrAbortHandler {
				slog.Error("rls_transaction_failed", "error", err, "tenant_id", tenantID)
			}
		})
	}
}
