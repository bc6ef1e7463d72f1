// Package session is the Session & Event Pipeline: it creates/revokes
// sessions, ingests login events from both the OIDC callback and the
// asynchronous upstream-IdP failure consumer, and runs the security alert
// rules on ingest. Adapted from the teacher's internal/auth/session_service.go
// (refresh-token rotation, reuse detection) generalized from single-tenant
// refresh tokens to sid-scoped, cap-evicted sessions.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/audit"
	"github.com/auth9/auth9/internal/cache"
	"github.com/auth9/auth9/internal/storage/db"
)

// MaxConcurrentSessions is §3's "concurrent cap = 10 per user".
const MaxConcurrentSessions = 10

// Manager owns session lifecycle (create/touch/revoke) and the cap
// eviction rule. One keyed mutex per user protects the
// count-then-evict-then-insert sequence against concurrent logins from the
// same user racing past the cap, mirroring the teacher's sync.Map-based
// IPRateLimiter keyed-state idiom (internal/api/middleware/ratelimit.go).
type Manager struct {
	pool  *pgxpool.Pool
	cache *cache.Store
	audit audit.AuditService
	log   *slog.Logger

	userLocks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewManager(pool *pgxpool.Pool, c *cache.Store, a audit.AuditService, log *slog.Logger) *Manager {
	return &Manager{pool: pool, cache: c, audit: a, log: log}
}

func (m *Manager) lockFor(userID uuid.UUID) *sync.Mutex {
	actual, _ := m.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Device describes the originating request for a new session.
type Device struct {
	Descriptor string
	IP         string
	Location   string
}

// Create inserts a new Session for userID, evicting the oldest active
// session first if the user is already at MaxConcurrentSessions. The evicted
// session's sid is blacklisted immediately so any outstanding token bound to
// it is rejected by the authorization middleware on its next use.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, dev Device) (db.Session, error) {
	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	pgUserID := pgtype.UUID{Bytes: userID, Valid: true}
	q := db.New(m.pool)

	count, err := q.CountActiveSessions(ctx, pgUserID)
	if err != nil {
		return db.Session{}, err
	}

	if count >= MaxConcurrentSessions {
		oldest, err := q.GetOldestActiveSession(ctx, pgUserID)
		if err == nil {
			if err := m.revoke(ctx, q, oldest); err != nil {
				return db.Session{}, err
			}
		}
	}

	sess, err := q.CreateSession(ctx, db.CreateSessionParams{
		UserID:    pgUserID,
		Device:    pgtype.Text{String: dev.Descriptor, Valid: dev.Descriptor != ""},
		IpAddress: pgtype.Text{String: dev.IP, Valid: dev.IP != ""},
		Location:  pgtype.Text{String: dev.Location, Valid: dev.Location != ""},
	})
	if err != nil {
		return db.Session{}, err
	}

	m.audit.Log(ctx, "session.created", audit.LogParams{
		ActorID: userID,
		Metadata: map[string]interface{}{
			"session_id": sess.ID.Bytes,
			"ip":         dev.IP,
		},
	})
	return sess, nil
}

func (m *Manager) revoke(ctx context.Context, q *db.Queries, sess db.Session) error {
	if err := q.RevokeSessionByID(ctx, sess.ID); err != nil {
		return err
	}
	if m.cache != nil {
		sid := uuid.UUID(sess.ID.Bytes).String()
		if err := m.cache.Blacklist(ctx, sid, 0); err != nil {
			m.log.Warn("session_blacklist_failed", "sid", sid, "error", err)
		}
	}
	return nil
}

// Revoke ends a single session explicitly (logout, admin action).
func (m *Manager) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	q := db.New(m.pool)
	sess, err := q.GetSession(ctx, pgtype.UUID{Bytes: sessionID, Valid: true})
	if err != nil {
		return err
	}
	return m.revoke(ctx, q, sess)
}

// RevokeAll ends every active session for a user (e.g. password change).
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	q := db.New(m.pool)
	pgUserID := pgtype.UUID{Bytes: userID, Valid: true}
	sessions, err := q.ListActiveSessionsForUser(ctx, pgUserID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := m.revoke(ctx, q, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Touch(ctx context.Context, sessionID uuid.UUID) error {
	q := db.New(m.pool)
	return q.TouchSession(ctx, pgtype.UUID{Bytes: sessionID, Valid: true})
}

func (m *Manager) List(ctx context.Context, userID uuid.UUID) ([]db.Session, error) {
	q := db.New(m.pool)
	return q.ListActiveSessionsForUser(ctx, pgtype.UUID{Bytes: userID, Valid: true})
}
