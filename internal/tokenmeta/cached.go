package tokenmeta

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wallet-profiler/internal/domain"
)

// Default cache settings.
const (
	DefaultCacheTTL       = 24 * time.Hour
	DefaultResolveTimeout = 2 * time.Second
)

var _ Resolver = (*CachedResolver)(nil)

// CachedResolver memoizes another Resolver and bounds each lookup.
// Failures and timeouts resolve to (nil, nil) so callers keep the trade
// with an unknown category. Failures are not cached.
type CachedResolver struct {
	next    Resolver
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]domain.CacheEntry[*domain.TokenMetadata]
}

// NewCachedResolver wraps next. Non-positive ttl or timeout take defaults.
func NewCachedResolver(next Resolver, ttl, timeout time.Duration, logger zerolog.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &CachedResolver{
		next:    next,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.With().Str("component", "tokenmeta").Logger(),
		now:     time.Now,
		entries: make(map[string]domain.CacheEntry[*domain.TokenMetadata]),
	}
}

// Resolve returns cached metadata or asks the wrapped resolver.
func (r *CachedResolver) Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	now := r.now()

	r.mu.RLock()
	e, ok := r.entries[mint]
	r.mu.RUnlock()
	if ok && e.Fresh(now) {
		return copyMeta(e.Value), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	meta, err := r.next.Resolve(lookupCtx, mint)
	if err != nil {
		r.logger.Debug().Err(err).Str("mint", mint).Msg("metadata lookup failed")
		return nil, nil
	}

	r.mu.Lock()
	r.entries[mint] = domain.NewCacheEntry(copyMeta(meta), now, r.ttl)
	r.mu.Unlock()

	return copyMeta(meta), nil
}

// CategoryOf resolves mint and returns only its category.
func CategoryOf(ctx context.Context, r Resolver, mint string) *domain.TokenCategory {
	meta, err := r.Resolve(ctx, mint)
	if err != nil || meta == nil {
		return nil
	}
	return Categorize(meta)
}

func copyMeta(m *domain.TokenMetadata) *domain.TokenMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Category != nil {
		c.Category = m.Category.Ptr()
	}
	return &c
}
