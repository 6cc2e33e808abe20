package memory

import (
	"context"
	"sync"
	"time"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

var _ storage.ProfileCache = (*ProfileCache)(nil)

// ProfileCache is an in-memory implementation of storage.ProfileCache.
// Expired entries are dropped lazily on read.
type ProfileCache struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry[*domain.WalletProfile] // keyed by wallet
	now     func() time.Time
}

// NewProfileCache creates a new in-memory profile cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]domain.CacheEntry[*domain.WalletProfile]),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *ProfileCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a copy of the cached entry. Returns ErrNotFound if missing or expired.
func (c *ProfileCache) Get(_ context.Context, wallet string) (*domain.CacheEntry[*domain.WalletProfile], error) {
	c.mu.RLock()
	e, exists := c.entries[wallet]
	now := c.now()
	c.mu.RUnlock()

	if !exists {
		return nil, storage.ErrNotFound
	}
	if !e.Fresh(now) {
		c.mu.Lock()
		if cur, ok := c.entries[wallet]; ok && !cur.Fresh(now) {
			delete(c.entries, wallet)
		}
		c.mu.Unlock()
		return nil, storage.ErrNotFound
	}

	entryCopy := e
	entryCopy.Value = e.Value.Clone()
	return &entryCopy, nil
}

// Set stores a copy of p for ttl.
func (c *ProfileCache) Set(_ context.Context, p *domain.WalletProfile, ttl time.Duration) error {
	if p == nil || p.WalletAddress == "" {
		return storage.ErrInvalidInput
	}
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[p.WalletAddress] = domain.NewCacheEntry(p.Clone(), c.now(), ttl)
	return nil
}

// Delete removes the entry for wallet.
func (c *ProfileCache) Delete(_ context.Context, wallet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, wallet)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
