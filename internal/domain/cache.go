package domain

import "time"

// CacheEntry wraps a cached value with the metadata needed to judge freshness.
type CacheEntry[T any] struct {
	Value    T             `json:"value"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// NewCacheEntry creates an entry stored at now.
func NewCacheEntry[T any](v T, now time.Time, ttl time.Duration) CacheEntry[T] {
	return CacheEntry[T]{Value: v, StoredAt: now, TTL: ttl}
}

// ExpiresAt returns the instant after which the entry is stale.
func (e CacheEntry[T]) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Fresh reports whether the entry is still valid at now.
// A non-positive TTL is never fresh.
func (e CacheEntry[T]) Fresh(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Before(e.ExpiresAt())
}

// Remaining returns the time left before expiry, or zero once stale.
func (e CacheEntry[T]) Remaining(now time.Time) time.Duration {
	d := e.ExpiresAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
