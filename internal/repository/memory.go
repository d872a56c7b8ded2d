package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore is the in-process TokenStore used when Redis is absent.
type MemoryTokenStore struct {
	revoked    sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (r *MemoryTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.revoked.Store(jti, time.Now().Add(ttl))
	return nil
}

func (r *MemoryTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	val, ok := r.revoked.Load(jti)
	if !ok {
		return false, nil
	}
	if time.Now().After(val.(time.Time)) {
		r.revoked.Delete(jti)
		return false, nil
	}
	return true, nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryTokenStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}

func (r *MemoryTokenStore) ResetRateLimit(ctx context.Context, key string) error {
	r.rateLimits.Delete(key)
	return nil
}

// Sweep drops expired denylist entries and counters.
func (r *MemoryTokenStore) Sweep() {
	now := time.Now()
	r.revoked.Range(func(k, v any) bool {
		if now.After(v.(time.Time)) {
			r.revoked.Delete(k)
		}
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimits.Range(func(k, v any) bool {
		if now.After(v.(*rateLimitEntry).expiresAt) {
			r.rateLimits.Delete(k)
		}
		return true
	})
}
