// Package events is the asynchronous consumer side of §4.5's login-event
// pipeline: the OIDC façade and WebAuthn engine ingest successes
// synchronously, but failures (failed-password, failed-mfa, lockouts)
// arrive from an upstream-IdP event stream pulled on a ticker, per §9's
// "pull-model consumer with at-least-once delivery and idempotency keys".
// Grounded on the teacher's cmd/worker/main.go ticker-driven loop, adapted
// from a cleanup job into a stream consumer.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/auth9/auth9/internal/session"
	"github.com/auth9/auth9/internal/storage/db"
)

// UpstreamEvent is one record as it arrives from the upstream IdP's event
// stream, prior to normalization into a LoginEvent.
type UpstreamEvent struct {
	OccurredAt time.Time
	Realm      string
	Email      string
	Type       UpstreamEventType
	IP         string
	Device     string
	Reason     string
}

type UpstreamEventType string

const (
	UpstreamFailedPassword UpstreamEventType = "failed_password"
	UpstreamFailedMFA      UpstreamEventType = "failed_mfa"
	UpstreamLocked         UpstreamEventType = "locked"
)

// Source is the pull side: one call returns a batch of events not yet
// acknowledged, newest delivery semantics are at-least-once so the same
// event may be returned more than once across calls.
type Source interface {
	Poll(ctx context.Context) ([]UpstreamEvent, error)
}

// Consumer drains a Source on an interval and ingests each event into the
// login-event pipeline, skipping any event whose (occurred_at, email, event
// type) is already stored before ever calling EventSink.Ingest. The realm is
// not part of that check; it is only recorded as a prefix of the reason.
type Consumer struct {
	source   Source
	sink     *session.EventSink
	q        *db.Queries
	log      *slog.Logger
	interval time.Duration
}

func NewConsumer(source Source, sink *session.EventSink, q *db.Queries, log *slog.Logger, interval time.Duration) *Consumer {
	return &Consumer{source: source, sink: sink, q: q, log: log, interval: interval}
}

// Run blocks, polling on c.interval until ctx is canceled. Each poll cycle's
// errors are logged and swallowed — per §9, "missing the stream degrades
// failure analytics but never success authentication", so a failing
// consumer must never propagate into the request path.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.pollOnce(ctx)
	for {
		select {
		case <-ticker.C:
			c.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) pollOnce(ctx context.Context) {
	batch, err := c.source.Poll(ctx)
	if err != nil {
		c.log.Warn("upstream_event_poll_failed", "error", err)
		return
	}
	for _, ev := range batch {
		if err := c.ingestOne(ctx, ev); err != nil {
			c.log.Warn("upstream_event_ingest_failed", "error", err, "email", ev.Email, "type", ev.Type)
		}
	}
}

func (c *Consumer) ingestOne(ctx context.Context, ev UpstreamEvent) error {
	ts := pgtype.Timestamptz{Time: ev.OccurredAt, Valid: true}
	eventType := string(ev.Type)

	exists, err := c.q.ExistsLoginEvent(ctx, ts, ev.Email, eventType)
	if err != nil {
		return err
	}
	if exists {
		return nil // already ingested this delivery of an at-least-once stream
	}

	var userID uuid.UUID
	if u, err := c.q.GetUserByEmail(ctx, ev.Email); err == nil {
		userID = uuid.UUID(u.ID.Bytes)
	}

	reason := ev.Reason
	if ev.Realm != "" {
		reason = "realm:" + ev.Realm + " " + reason
	}

	_, err = c.sink.Ingest(ctx, uuid.Nil, userID, ev.Email, sessionEventType(ev.Type), ev.IP, ev.Device, reason)
	return err
}

func sessionEventType(t UpstreamEventType) session.EventType {
	switch t {
	case UpstreamFailedMFA:
		return session.EventFailedMFA
	case UpstreamLocked:
		return session.EventLocked
	default:
		return session.EventFailedPassword
	}
}
