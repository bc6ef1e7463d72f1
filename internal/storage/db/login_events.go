package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateLoginEventParams struct {
	UserID    pgtype.UUID
	Email     string
	EventType string
	IpAddress pgtype.Text
	Device    pgtype.Text
	Reason    pgtype.Text
}

func (q *Queries) CreateLoginEvent(ctx context.Context, arg CreateLoginEventParams) (LoginEvent, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO login_events (user_id, email, event_type, ip_address, device, reason, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING id, user_id, email, event_type, ip_address, device, reason, occurred_at`,
		arg.UserID, arg.Email, arg.EventType, arg.IpAddress, arg.Device, arg.Reason)
	var e LoginEvent
	err := row.Scan(&e.ID, &e.UserID, &e.Email, &e.EventType, &e.IpAddress, &e.Device, &e.Reason, &e.OccurredAt)
	return e, err
}

// ExistsLoginEvent backs the asynchronous upstream-IdP failure consumer's
// duplicate check on (occurred_at, email, event_type). The realm is not part
// of the check: login_events has no realm column of its own, and the
// consumer only packs "realm:<realm>" as a reason prefix before the event is
// stored.
func (q *Queries) ExistsLoginEvent(ctx context.Context, occurredAt pgtype.Timestamptz, email, eventType string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM login_events WHERE occurred_at = $1 AND email = $2 AND event_type = $3)`,
		occurredAt, email, eventType).Scan(&exists)
	return exists, err
}

// CountFailuresByEmailSince counts failed_password events for an email
// within a trailing window, feeding the brute_force detector.
func (q *Queries) CountFailuresByEmailSince(ctx context.Context, email string, since pgtype.Timestamptz) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
SELECT count(*) FROM login_events
WHERE email = $1 AND event_type = 'failed_password' AND occurred_at >= $2`, email, since).Scan(&n)
	return n, err
}

func (q *Queries) CountDistinctIPsForEmailSince(ctx context.Context, email string, since pgtype.Timestamptz) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
SELECT count(DISTINCT ip_address) FROM login_events
WHERE email = $1 AND event_type = 'failed_password' AND occurred_at >= $2`, email, since).Scan(&n)
	return n, err
}

// CountDistinctUsersForIPSince feeds the suspicious_ip (password-spray)
// detector: distinct emails failing from one IP within the window.
func (q *Queries) CountDistinctUsersForIPSince(ctx context.Context, ip string, since pgtype.Timestamptz) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
SELECT count(DISTINCT email) FROM login_events
WHERE ip_address = $1 AND event_type = 'failed_password' AND occurred_at >= $2`, ip, since).Scan(&n)
	return n, err
}

func (q *Queries) HasDeviceBeenSeen(ctx context.Context, userID pgtype.UUID, device string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM login_events WHERE user_id = $1 AND device = $2 AND event_type IN ('success','webauthn'))`,
		userID, device).Scan(&exists)
	return exists, err
}
