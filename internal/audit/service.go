package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/auth9/auth9/internal/storage/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// AuditService defines the interface for recording security events.
type AuditService interface {
	Log(ctx context.Context, action string, params LogParams)
}

// LogParams encapsulates optional fields for an audit log.
type LogParams struct {
	ActorID   uuid.UUID
	TargetID  uuid.UUID
	TenantID  uuid.UUID
	SessionID uuid.UUID
	Metadata  map[string]interface{}
}

// DBLogger implements AuditService using the PostgreSQL database.
type DBLogger struct {
	queries *db.Queries
	logger  *slog.Logger
}

func NewDBLogger(queries *db.Queries, logger *slog.Logger) *DBLogger {
	return &DBLogger{
		queries: queries,
		logger:  logger,
	}
}

// Log records an event.
// Design Decision: We execute purely synchronously for CRITICAL events for now (MVP).
// In high-scale, this should push to a channel/queue.
func (s *DBLogger) Log(ctx context.Context, action string, params LogParams) {
	// IP address, user agent and request id are not recorded: LogParams
	// carries none of them and the context is not inspected for them (the
	// audit package does not import middleware, which would risk a cycle).

	metadataBytes, err := json.Marshal(params.Metadata)
	if err != nil {
		s.logger.Error("audit_metadata_marshal_failed", "error", err)
		metadataBytes = []byte("{}")
	}

	// Helper to convert UUID to pgtype or Null
	toUUID := func(u uuid.UUID) pgtype.UUID {
		return pgtype.UUID{Bytes: u, Valid: u != uuid.Nil}
	}

	err = s.queries.CreateAuditLog(ctx, db.CreateAuditLogParams{
		ActorID:   toUUID(params.ActorID),
		SessionID: toUUID(params.SessionID),
		TenantID:  toUUID(params.TenantID),
		Action:    action,
		TargetID:  toUUID(params.TargetID),
		Metadata:  metadataBytes,
		// IpAddress: ... (Need to add to Params or Context)
		// UserAgent: ...
		// RequestId: ...
	})

	if err != nil {
		// Fallback: Log to Stdout so we don't lose the event entirely
		s.logger.Error("audit_db_insert_failed",
			"action", action,
			"error", err,
			"actor", params.ActorID,
		)
	}
}
