package memory

import (
	"context"
	"errors"
	"testing"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

func TestTokenMetadataStore_UpsertAndGetByMint(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	name := "Bonk"
	symbol := "BONK"
	supply := 1000000.0

	meta := &domain.TokenMetadata{
		Mint:      "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		Name:      &name,
		Symbol:    &symbol,
		Decimals:  5,
		Supply:    &supply,
		Category:  domain.CategoryMemecoin.Ptr(),
		FetchedAt: 1704067200000,
	}

	if err := store.Upsert(ctx, meta); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, meta.Mint)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if *result.Symbol != "BONK" {
		t.Errorf("Symbol mismatch: got %s, want BONK", *result.Symbol)
	}
	if result.Category == nil || *result.Category != domain.CategoryMemecoin {
		t.Errorf("Category mismatch: got %v", result.Category)
	}

	// Mutating the returned copy must not leak into the store.
	*result.Symbol = "XXX"
	again, _ := store.GetByMint(ctx, meta.Mint)
	if *again.Symbol != "BONK" {
		t.Errorf("store was mutated through returned value: %s", *again.Symbol)
	}
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.TokenMetadata{Mint: "mint1", Decimals: 6, FetchedAt: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.TokenMetadata{Mint: "mint1", Decimals: 9, FetchedAt: 2}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if result.Decimals != 9 || result.FetchedAt != 2 {
		t.Errorf("expected replaced record, got decimals=%d fetched_at=%d", result.Decimals, result.FetchedAt)
	}
}

func TestTokenMetadataStore_NotFoundAndInvalid(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	if _, err := store.GetByMint(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.TokenMetadata{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty mint, got %v", err)
	}
}
