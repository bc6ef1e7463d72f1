package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/storage/db"
)

// EventType mirrors §3's LoginEvent.event_type enum.
type EventType string

const (
	EventSuccess       EventType = "success"
	EventFailedPassword EventType = "failed_password"
	EventFailedMFA     EventType = "failed_mfa"
	EventLocked        EventType = "locked"
	EventSocial        EventType = "social"
	EventWebAuthn      EventType = "webauthn"
)

// EventSink ingests LoginEvents from both sources described in §4.5: the
// OIDC callback (success, synchronous) and the asynchronous upstream-IdP
// failure consumer (internal/events), which skips events already stored
// under the same (occurred_at, email, event type) before ever calling in
// here; the realm is not part of that check.
type EventSink struct {
	pool   *pgxpool.Pool
	alerts *AlertEngine
	log    *slog.Logger
}

func NewEventSink(pool *pgxpool.Pool, alerts *AlertEngine, log *slog.Logger) *EventSink {
	return &EventSink{pool: pool, alerts: alerts, log: log}
}

// Ingest writes one LoginEvent and runs the security alert rules against it.
// userID may be uuid.Nil when the identity behind a failed attempt is
// unknown (bad email, unregistered upstream sub).
func (s *EventSink) Ingest(ctx context.Context, tenantID, userID uuid.UUID, email string, eventType EventType, ip, device, reason string) (db.LoginEvent, error) {
	q := db.New(s.pool)

	var pgUserID pgtype.UUID
	if userID != uuid.Nil {
		pgUserID = pgtype.UUID{Bytes: userID, Valid: true}
	}

	ev, err := q.CreateLoginEvent(ctx, db.CreateLoginEventParams{
		UserID:    pgUserID,
		Email:     email,
		EventType: string(eventType),
		IpAddress: pgtype.Text{String: ip, Valid: ip != ""},
		Device:    pgtype.Text{String: device, Valid: device != ""},
		Reason:    pgtype.Text{String: reason, Valid: reason != ""},
	})
	if err != nil {
		return db.LoginEvent{}, err
	}

	if s.alerts != nil {
		if err := s.alerts.Evaluate(ctx, tenantID, userID, email, eventType, ip, device, ev.OccurredAt.Time); err != nil {
			s.log.Warn("security_alert_evaluation_failed", "error", err, "event_type", eventType, "email", email)
		}
	}
	return ev, nil
}

func since(d time.Duration) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now().Add(-d), Valid: true}
}
