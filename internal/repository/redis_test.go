package repository

import (
	"context"
	"testing"
	"time"

	"carrental/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisTokenStore(client)
	ctx := context.Background()

	t.Run("RevokeAndCheck", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "jti-1", time.Minute))

		revoked, err := repo.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
		assert.True(t, s.Exists("revoked:jti-1"))

		revoked, err = repo.IsRevoked(ctx, "jti-2")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("RevocationExpires", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "jti-short", time.Second))
		s.FastForward(2 * time.Second)

		revoked, err := repo.IsRevoked(ctx, "jti-short")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("RevokeExpiredTokenIsNoop", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "jti-old", 0))
		assert.False(t, s.Exists("revoked:jti-old"))
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:a@b.c"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ResetRateLimit", func(t *testing.T) {
		key := "login:reset@b.c"
		for i := 0; i < 3; i++ {
			_, _ = repo.CheckRateLimit(ctx, key, 1, time.Minute)
		}
		require.NoError(t, repo.ResetRateLimit(ctx, key))

		allowed, err := repo.CheckRateLimit(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisTokenStore(nil)
		_, err := repo.IsRevoked(ctx, "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
		assert.Error(t, repo.Revoke(ctx, "x", time.Minute))
		assert.Error(t, repo.ResetRateLimit(ctx, "x"))
		_, err = repo.CheckRateLimit(ctx, "x", 1, time.Minute)
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		_, err := NewRedisTokenStore(down).IsRevoked(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
		assert.NoError(t, Close(nil))
	})
}
