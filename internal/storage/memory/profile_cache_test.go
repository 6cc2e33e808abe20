package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

func testProfile(wallet, runID string, computedAt time.Time) *domain.WalletProfile {
	return &domain.WalletProfile{
		WalletAddress: wallet,
		ComputedAt:    computedAt,
		Scores:        map[domain.ScoreName]int{domain.ScoreRisk: 40},
		Archetype:     domain.ArchetypeBalancedInvestor,
		TradeCount:    12,
		Confidence:    0.3,
		ModelVersion:  "test",
		RunID:         runID,
	}
}

func TestProfileCache_SetAndGet(t *testing.T) {
	cache := NewProfileCache()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	if err := cache.Set(ctx, testProfile("w1", "r1", now), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := cache.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Value.RunID != "r1" {
		t.Errorf("RunID mismatch: got %s, want r1", entry.Value.RunID)
	}
	if entry.TTL != time.Minute {
		t.Errorf("TTL mismatch: got %v, want %v", entry.TTL, time.Minute)
	}

	// Mutating the returned copy must not leak into the cache
	entry.Value.Scores[domain.ScoreRisk] = 99
	again, _ := cache.Get(ctx, "w1")
	if again.Value.Scores[domain.ScoreRisk] != 40 {
		t.Errorf("cache entry was mutated through returned copy")
	}
}

func TestProfileCache_Expiry(t *testing.T) {
	cache := NewProfileCache()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	if err := cache.Set(ctx, testProfile("w1", "r1", now), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	_, err := cache.Get(ctx, "w1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected expired entry to be dropped, len=%d", cache.Len())
	}
}

func TestProfileCache_ZeroTTLIsNoop(t *testing.T) {
	cache := NewProfileCache()
	ctx := context.Background()

	if err := cache.Set(ctx, testProfile("w1", "r1", time.Now()), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := cache.Get(ctx, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProfileCache_Delete(t *testing.T) {
	cache := NewProfileCache()
	ctx := context.Background()

	_ = cache.Set(ctx, testProfile("w1", "r1", time.Now()), time.Hour)
	if err := cache.Delete(ctx, "w1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := cache.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestProfileCache_InvalidInput(t *testing.T) {
	cache := NewProfileCache()
	if err := cache.Set(context.Background(), nil, time.Minute); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
