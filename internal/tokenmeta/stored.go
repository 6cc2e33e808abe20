package tokenmeta

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

// DefaultStoreMaxAge bounds how long persisted metadata is trusted.
const DefaultStoreMaxAge = 7 * 24 * time.Hour

var _ Resolver = (*StoredResolver)(nil)

// StoredResolver reads metadata from a TokenMetadataStore and falls back
// to the wrapped resolver for missing or stale mints, writing results back.
// When the fallback fails, a stale stored record is still returned.
type StoredResolver struct {
	next   Resolver
	store  storage.TokenMetadataStore
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewStoredResolver wraps next with store. Non-positive maxAge takes the default.
func NewStoredResolver(next Resolver, store storage.TokenMetadataStore, maxAge time.Duration, logger zerolog.Logger) *StoredResolver {
	if maxAge <= 0 {
		maxAge = DefaultStoreMaxAge
	}
	return &StoredResolver{
		next:   next,
		store:  store,
		maxAge: maxAge,
		logger: logger.With().Str("component", "tokenmeta_store").Logger(),
		now:    time.Now,
	}
}

// Resolve returns stored metadata when fresh, otherwise resolves and persists.
func (r *StoredResolver) Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	stored, err := r.store.GetByMint(ctx, mint)
	switch {
	case err == nil:
		if r.now().UnixMilli()-stored.FetchedAt < r.maxAge.Milliseconds() {
			return stored, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		r.logger.Warn().Err(err).Str("mint", mint).Msg("read stored metadata")
	}

	meta, err := r.next.Resolve(ctx, mint)
	if err != nil {
		if stored != nil {
			r.logger.Debug().Err(err).Str("mint", mint).Msg("serving stale metadata")
			return stored, nil
		}
		return nil, err
	}
	if meta == nil {
		return stored, nil
	}

	if err := r.store.Upsert(ctx, meta); err != nil {
		r.logger.Warn().Err(err).Str("mint", mint).Msg("persist metadata")
	}
	return meta, nil
}
