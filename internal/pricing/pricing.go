// Package pricing looks up spot USD prices for tokens.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
)

// ErrNoPrice is returned when no market quotes the token.
var ErrNoPrice = errors.New("no price available")

// Source returns the USD price of one whole token.
type Source interface {
	PriceUSD(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Defaults for DexScreener.
const (
	DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/tokens"
	DefaultPriceTTL       = 60 * time.Second
)

var _ Source = (*DexScreener)(nil)

// DexScreener prices tokens from the most liquid DexScreener pair.
// Prices are cached per mint for ttl. Stablecoins are pegged at 1 without a lookup.
type DexScreener struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.CacheEntry[decimal.Decimal]
}

// NewDexScreener creates a DexScreener price source.
func NewDexScreener(baseURL string, ttl time.Duration) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &DexScreener{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]domain.CacheEntry[decimal.Decimal]),
	}
}

type dexScreenerResponse struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		PriceUSD  string `json:"priceUsd"`
		BaseToken struct {
			Address string `json:"address"`
		} `json:"baseToken"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// PriceUSD returns the price of mint in USD.
func (d *DexScreener) PriceUSD(ctx context.Context, mint string) (decimal.Decimal, error) {
	if mint == domain.MintUSDC || mint == domain.MintUSDT {
		return decimal.NewFromInt(1), nil
	}

	now := d.now()
	d.mu.RLock()
	e, ok := d.cache[mint]
	d.mu.RUnlock()
	if ok && e.Fresh(now) {
		return e.Value, nil
	}

	price, err := d.fetch(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}

	d.mu.Lock()
	d.cache[mint] = domain.NewCacheEntry(price, now, d.ttl)
	d.mu.Unlock()
	return price, nil
}

func (d *DexScreener) fetch(ctx context.Context, mint string) (_ decimal.Decimal, err error) {
	defer func(start time.Time) {
		observability.RecordUpstreamCall("dexscreener", "tokens", time.Since(start), err)
	}(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", d.baseURL, mint), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("dexscreener request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return decimal.Zero, fmt.Errorf("dexscreener: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read dexscreener response: %w", err)
	}

	var result dexScreenerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("decode dexscreener response: %w", err)
	}

	var (
		best    decimal.Decimal
		bestLiq = -1.0
	)
	for _, p := range result.Pairs {
		if p.ChainID != "" && p.ChainID != "solana" {
			continue
		}
		if p.BaseToken.Address != "" && p.BaseToken.Address != mint {
			continue
		}
		price, err := decimal.NewFromString(p.PriceUSD)
		if err != nil || !price.IsPositive() {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			best, bestLiq = price, p.Liquidity.USD
		}
	}
	if bestLiq < 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", mint, ErrNoPrice)
	}
	return best, nil
}

// Static is a fixed price table, used by tests and offline runs.
type Static map[string]decimal.Decimal

// PriceUSD returns the configured price or ErrNoPrice.
func (s Static) PriceUSD(_ context.Context, mint string) (decimal.Decimal, error) {
	p, ok := s[mint]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", mint, ErrNoPrice)
	}
	return p, nil
}
