// Package cache is the Cache & Revocation Store: a namespaced Redis-backed
// key/value store with fail-closed semantics. No teacher precedent exists
// (the teacher has no Redis dependency) — grounded on the pack's
// Abraxas-365-manifesto and suleymanmyradov-growth-server usage of
// github.com/redis/go-redis/v9.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned for any operation when the store cannot be
// reached; callers implement fail-closed (§4.2) or degrade deliberately.
var ErrUnavailable = errors.New("cache: store unavailable")

var ErrMiss = errors.New("cache: key not found")

type Store struct {
	rdb *redis.Client
}

func New(addr string, opts ...func(*redis.Options)) (*Store, error) {
	o, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing cache url: %w", err)
	}
	for _, apply := range opts {
		apply(o)
	}
	return &Store{rdb: redis.NewClient(o)}, nil
}

// NewFromClient wraps an already-constructed client; used by tests to plug
// in a miniredis-backed client.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

func (s *Store) Close() error { return s.rdb.Close() }

// --- Key namespaces (§4.4) ---

func KeyJWKS(kid string) string { return "jwks:" + kid }

func KeySessionBlacklist(sid string) string { return "session:blacklist:" + sid }

func KeyUserRoles(userID, tenantID, serviceID string) string {
	return fmt.Sprintf("user_roles:%s:%s:%s", userID, tenantID, serviceID)
}

func KeyWebAuthnReg(userID string) string { return "webauthn:reg:" + userID }

func KeyWebAuthnAuth(challengeID string) string { return "webauthn:auth:" + challengeID }

func KeyRateLimit(scope, bucket string) string { return "ratelimit:" + scope + ":" + bucket }

// --- Generic byte operations ---

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, ErrUnavailable
	}
	return b, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, ErrUnavailable
	}
	return n > 0, nil
}

// PingWithRetry implements §4.2's "one cheap retry" before a revocation
// lookup is allowed to fail closed.
func (s *Store) PingWithRetry(ctx context.Context) error {
	if err := s.Ping(ctx); err == nil {
		return nil
	}
	time.Sleep(20 * time.Millisecond)
	return s.Ping(ctx)
}

// IsRevoked checks the session blocklist, retrying once on infrastructure
// failure per §4.2 before surfacing ErrUnavailable to the caller.
func (s *Store) IsRevoked(ctx context.Context, sid string) (bool, error) {
	ok, err := s.Exists(ctx, KeySessionBlacklist(sid))
	if err == nil {
		return ok, nil
	}
	time.Sleep(20 * time.Millisecond)
	ok, err = s.Exists(ctx, KeySessionBlacklist(sid))
	if err != nil {
		return false, ErrUnavailable
	}
	return ok, nil
}

// Blacklist marks a session revoked for at least the remaining token
// lifetime.
func (s *Store) Blacklist(ctx context.Context, sid string, ttl time.Duration) error {
	return s.Set(ctx, KeySessionBlacklist(sid), []byte("1"), ttl)
}

// InvalidateUserRoles actively invalidates the cached policy decision on
// role assignment, unassignment, membership delete, or ABAC publish.
func (s *Store) InvalidateUserRoles(ctx context.Context, userID, tenantID, serviceID string) error {
	return s.Delete(ctx, KeyUserRoles(userID, tenantID, serviceID))
}
