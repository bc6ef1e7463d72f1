package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/auth9/auth9/internal/cache"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewFromClient(rdb)
}

func TestSessionBlacklistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, s.Blacklist(ctx, "sid-1", time.Minute))

	revoked, err = s.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestInvalidateUserRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := cache.KeyUserRoles("user-1", "tenant-1", "service-1")
	require.NoError(t, s.Set(ctx, key, []byte(`{"roles":["admin"]}`), 5*time.Minute))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, s.InvalidateUserRoles(ctx, "user-1", "tenant-1", "service-1"))

	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestUnavailableAfterClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "anything")
	require.ErrorIs(t, err, cache.ErrUnavailable)
}
