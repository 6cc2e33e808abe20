package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert stores metadata for m.Mint, replacing an older record.
// A record with an older fetched_at never overwrites a newer one.
func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) (err error) {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("upsert_token_metadata", time.Now(), &err)

	query := `
		INSERT INTO token_metadata (
			mint, name, symbol, decimals, supply, category, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			supply = EXCLUDED.supply,
			category = EXCLUDED.category,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = NOW()
		WHERE token_metadata.fetched_at <= EXCLUDED.fetched_at
	`

	var category *string
	if m.Category != nil {
		c := m.Category.String()
		category = &c
	}

	_, err = s.pool.Exec(ctx, query,
		m.Mint,
		m.Name,
		m.Symbol,
		m.Decimals,
		m.Supply,
		category,
		m.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (_ *domain.TokenMetadata, err error) {
	defer observe("get_token_metadata", time.Now(), &err)

	query := `
		SELECT mint, name, symbol, decimals, supply, category, fetched_at
		FROM token_metadata
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	m, err := scanTokenMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}
	return m, nil
}

// scanTokenMetadata scans a single row into TokenMetadata.
func scanTokenMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var (
		m        domain.TokenMetadata
		category *string
	)

	err := row.Scan(
		&m.Mint,
		&m.Name,
		&m.Symbol,
		&m.Decimals,
		&m.Supply,
		&category,
		&m.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	if category != nil {
		m.Category = domain.TokenCategory(*category).Ptr()
	}
	return &m, nil
}
