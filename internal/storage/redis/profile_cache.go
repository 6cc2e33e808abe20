// Package redis implements the hot profile tier on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/storage"
)

// KeyPrefix namespaces profile keys. Bump the version when the stored
// layout changes so old entries are ignored rather than misread.
const KeyPrefix = "profile:v1:"

var _ storage.ProfileCache = (*ProfileCache)(nil)

// entry is the stored JSON layout.
type entry struct {
	Profile  *domain.WalletProfile `json:"profile"`
	StoredAt time.Time             `json:"stored_at"`
	TTLMs    int64                 `json:"ttl_ms"`
}

// ProfileCache implements storage.ProfileCache. Expiry is enforced by Redis.
type ProfileCache struct {
	client goredis.UniversalClient
	now    func() time.Time
}

// NewProfileCache wraps an existing client.
func NewProfileCache(client goredis.UniversalClient) *ProfileCache {
	return &ProfileCache{client: client, now: time.Now}
}

// NewClient creates a client and verifies connectivity. The client is
// returned even when the ping fails: it redials on every command, so the
// caller may keep it and see ErrCacheUnavailable until the server is back.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("%w: ping %s: %w", domain.ErrCacheUnavailable, addr, err)
	}
	return client, nil
}

func key(wallet string) string {
	return KeyPrefix + wallet
}

// Get returns the cached entry. Returns storage.ErrNotFound on a miss.
// An undecodable entry is deleted and reported as a miss.
func (c *ProfileCache) Get(ctx context.Context, wallet string) (*domain.CacheEntry[*domain.WalletProfile], error) {
	start := time.Now()
	raw, err := c.client.Get(ctx, key(wallet)).Bytes()
	observability.RecordDBQuery("redis", "get", time.Since(start), ignoreNil(err))
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrCacheUnavailable, wallet, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Profile == nil {
		_ = c.client.Del(ctx, key(wallet)).Err()
		return nil, storage.ErrNotFound
	}

	return &domain.CacheEntry[*domain.WalletProfile]{
		Value:    e.Profile,
		StoredAt: e.StoredAt,
		TTL:      time.Duration(e.TTLMs) * time.Millisecond,
	}, nil
}

// Set stores p for ttl. A non-positive ttl is a no-op.
func (c *ProfileCache) Set(ctx context.Context, p *domain.WalletProfile, ttl time.Duration) error {
	if p == nil || p.WalletAddress == "" {
		return storage.ErrInvalidInput
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry{Profile: p, StoredAt: c.now().UTC(), TTLMs: ttl.Milliseconds()})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	start := time.Now()
	err = c.client.Set(ctx, key(p.WalletAddress), data, ttl).Err()
	observability.RecordDBQuery("redis", "set", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrCacheUnavailable, p.WalletAddress, err)
	}
	return nil
}

// Delete removes the entry for wallet.
func (c *ProfileCache) Delete(ctx context.Context, wallet string) error {
	if err := c.client.Del(ctx, key(wallet)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrCacheUnavailable, wallet, err)
	}
	return nil
}

func ignoreNil(err error) error {
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	return err
}
