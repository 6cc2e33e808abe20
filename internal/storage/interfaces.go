package storage

import (
	"context"
	"time"

	"wallet-profiler/internal/domain"
)

// ProfileCache is the hot tier: a fast, expiring key/value cache of profiles.
// Implementations must be safe for concurrent use.
type ProfileCache interface {
	// Get returns the cached entry for wallet. Returns ErrNotFound on a miss.
	// Connectivity failures wrap domain.ErrCacheUnavailable.
	Get(ctx context.Context, wallet string) (*domain.CacheEntry[*domain.WalletProfile], error)

	// Set stores p under its wallet address for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, p *domain.WalletProfile, ttl time.Duration) error

	// Delete removes the entry for wallet. Missing entries are not an error.
	Delete(ctx context.Context, wallet string) error
}

// ProfileStore is the durable tier: the authoritative record of computed profiles.
type ProfileStore interface {
	// Get returns the latest non-invalidated profile for wallet. Returns ErrNotFound if none.
	Get(ctx context.Context, wallet string) (*domain.WalletProfile, error)

	// Upsert records p as a new history row and makes it the latest for its wallet.
	// Returns ErrDuplicateKey if p.RunID was already stored.
	Upsert(ctx context.Context, p *domain.WalletProfile) error

	// Invalidate detaches the latest profile so Get misses. History is kept.
	Invalidate(ctx context.Context, wallet string) error

	// History returns up to limit past profiles for wallet, newest first.
	History(ctx context.Context, wallet string, limit int) ([]*domain.WalletProfile, error)
}

// TradeLedger stores normalized trades per wallet, deduplicated by signature.
type TradeLedger interface {
	// Append inserts trades not already present for wallet.
	// Returns the number of newly stored trades.
	Append(ctx context.Context, wallet string, trades []domain.Trade) (int, error)

	// LatestSignature returns the signature of the newest stored trade.
	// Returns ErrNotFound if the ledger holds nothing for wallet.
	LatestSignature(ctx context.Context, wallet string) (string, error)

	// Recent returns up to limit newest trades for wallet, ordered oldest first.
	Recent(ctx context.Context, wallet string, limit int) ([]domain.Trade, error)
}

// TokenMetadataStore persists resolved mint metadata across restarts.
type TokenMetadataStore interface {
	// GetByMint returns stored metadata for mint. Returns ErrNotFound if none.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)

	// Upsert stores m, replacing any previous record for the same mint.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error
}
