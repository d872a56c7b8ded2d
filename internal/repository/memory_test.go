package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	repo := NewMemoryTokenStore()
	ctx := context.Background()

	t.Run("Revoke", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "jti", time.Hour))

		revoked, err := repo.IsRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, _ = repo.IsRevoked(ctx, "other")
		assert.False(t, revoked)
	})

	t.Run("RevocationExpires", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "short", 20*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		revoked, _ := repo.IsRevoked(ctx, "short")
		assert.False(t, revoked)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:user"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, 50*time.Millisecond)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, 50*time.Millisecond)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, 50*time.Millisecond)
		assert.False(t, allowed)

		// Wait for expiry
		time.Sleep(60 * time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, 50*time.Millisecond)
		assert.True(t, allowed)

		require.NoError(t, repo.ResetRateLimit(ctx, key))
	})

	t.Run("ConcurrentCounters", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowedCount := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, _ := repo.CheckRateLimit(ctx, "burst", 5, time.Minute)
				if ok {
					mu.Lock()
					allowedCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 5, allowedCount)
	})

	t.Run("Sweep", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, "gone", time.Millisecond))
		_, _ = repo.CheckRateLimit(ctx, "gone", 1, time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		repo.Sweep()

		_, ok := repo.revoked.Load("gone")
		assert.False(t, ok)
		_, ok = repo.rateLimits.Load("gone")
		assert.False(t, ok)
	})
}
