package memory

import (
	"context"
	"sync"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.TokenMetadata
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		byMint: make(map[string]*domain.TokenMetadata),
	}
}

// Upsert stores a copy of m keyed by mint.
func (s *TokenMetadataStore) Upsert(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	metaCopy := copyMetadata(m)

	s.mu.Lock()
	s.byMint[m.Mint] = metaCopy
	s.mu.Unlock()
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyMetadata(m), nil
}

func copyMetadata(m *domain.TokenMetadata) *domain.TokenMetadata {
	c := *m
	if m.Name != nil {
		name := *m.Name
		c.Name = &name
	}
	if m.Symbol != nil {
		symbol := *m.Symbol
		c.Symbol = &symbol
	}
	if m.Supply != nil {
		supply := *m.Supply
		c.Supply = &supply
	}
	if m.Category != nil {
		c.Category = m.Category.Ptr()
	}
	return &c
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)
