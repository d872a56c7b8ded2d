package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"carrental/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverTokenStore uses the primary store until it errors, then serves from
// the fallback and retries the primary once per recoveryInterval.
type FailoverTokenStore struct {
	primary   domain.TokenStore
	fallback  domain.TokenStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverTokenStore(primary, fallback domain.TokenStore, logger *zerolog.Logger) *FailoverTokenStore {
	return &FailoverTokenStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverTokenStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary token store failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverTokenStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverTokenStore) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary token store recovered")
	}
}

func (r *FailoverTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	// the fallback always gets a copy so a later outage still honours the revocation
	_ = r.fallback.Revoke(ctx, jti, ttl)

	if r.usePrimary() {
		err := r.primary.Revoke(ctx, jti, ttl)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.usePrimary() {
		revoked, err := r.primary.IsRevoked(ctx, jti)
		if err == nil {
			r.recovered()
			if revoked {
				return true, nil
			}
			return r.fallback.IsRevoked(ctx, jti)
		}
		r.markDown(err)
	}
	return r.fallback.IsRevoked(ctx, jti)
}

func (r *FailoverTokenStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverTokenStore) ResetRateLimit(ctx context.Context, key string) error {
	_ = r.fallback.ResetRateLimit(ctx, key)

	if r.usePrimary() {
		err := r.primary.ResetRateLimit(ctx, key)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}
