package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisDenylist(t *testing.T) {
	client, mr := setupTestRedis(t)
	denylist := NewRedisDenylist(client)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = denylist.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisDenylistSkipsExpiredTokens(t *testing.T) {
	client, mr := setupTestRedis(t)
	denylist := NewRedisDenylist(client)

	require.NoError(t, denylist.Revoke(context.Background(), "jti-old", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(denylistKeyPrefix+"jti-old"))
}

func TestMemoryDenylistExpires(t *testing.T) {
	denylist := NewMemoryDenylist()
	now := time.Now()
	denylist.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	revoked, _ := denylist.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)

	denylist.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, _ = denylist.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
}
