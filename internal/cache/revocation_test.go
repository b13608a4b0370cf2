package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRevokeAccountComparesMilliseconds(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, 25*time.Hour)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 30, 15, 400*int(time.Millisecond), time.UTC)

	require.NoError(t, store.RevokeAccount(ctx, 7, at))

	tests := []struct {
		name     string
		issuedAt time.Time
		revoked  bool
	}{
		{"earlier second", at.Add(-time.Second), true},
		{"same second before", at.Add(-100 * time.Millisecond), true},
		{"same instant", at, true},
		{"same second after", at.Add(50 * time.Millisecond), false},
		{"later", at.Add(time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revoked, err := store.IsRevoked(ctx, "jti-"+tt.name, 7, tt.issuedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.revoked, revoked)
		})
	}

	revoked, err := store.IsRevoked(ctx, "jti-other", 8, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, revoked, "other accounts are unaffected")
}

func TestRevokeToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, time.Hour)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RevokeToken(ctx, "abc", now.Add(10*time.Minute)))
	revoked, err := store.IsRevoked(ctx, "abc", 1, now)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(config.CacheKey.RevokedTokenKey("abc"))
	assert.True(t, ttl > 0 && ttl <= 10*time.Minute, "ttl %s", ttl)

	require.NoError(t, store.RevokeToken(ctx, "gone", now.Add(-time.Minute)))
	assert.False(t, mr.Exists(config.CacheKey.RevokedTokenKey("gone")), "expired tokens are not stored")

	mr.FastForward(11 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "abc", 1, now)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevokedReportsRedisFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, time.Hour)
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "abc", 1, time.Now())
	assert.Error(t, err)
}
