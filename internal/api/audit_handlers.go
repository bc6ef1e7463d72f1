package api

import (
	"net/http"

	"github.com/auth9/auth9/internal/api/helpers"
	"github.com/auth9/auth9/internal/api/middleware"
	"github.com/auth9/auth9/internal/apperr"
	"github.com/auth9/auth9/internal/storage/db"
)

// ListMyAuditLogs serves GET /users/me/audit-logs: the actor-scoped
// complement to tenant_handlers.go's AuditLogs, for a user reviewing their
// own action history across every tenant they belong to.
func (s *Server) ListMyAuditLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		helpers.RespondAppError(w, apperr.ErrTokenInvalid)
		return
	}
	page, perPage := pageParams(r)
	logs, err := s.svc.Queries.ListAuditLogsByUser(r.Context(), db.ListAuditLogsByUserParams{
		ActorID: pgUUID(userID),
		Limit:   int32(perPage),
		Offset:  int32((page - 1) * perPage),
	})
	if err != nil {
		helpers.RespondAppError(w, apperr.Wrap(apperr.KindInternal, "audit_logs_failed", "AUDIT_LOGS_FAILED", "Could not list audit logs", err))
		return
	}
	helpers.RespondPaginated(w, logs, page, perPage, len(logs))
}
