// Package scoring derives a behavioral profile from a wallet's trades and holdings.
//
// The engine is a pure function of its inputs: the same trades and holdings
// always produce bit-identical scores. Every map is iterated in sorted key
// order so float accumulation order is fixed.
package scoring

import (
	"fmt"
	"time"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/idhash"
)

// ModelVersion identifies the scoring rules. Profiles computed under another
// version are treated as stale by the TTL policy.
const ModelVersion = "2.1.0"

// Config holds the scoring thresholds.
type Config struct {
	MinTrades                   int           // below this, scores are neutral and confidence is capped
	SaturationTrades            int           // confidence reaches 1 at this sample size
	LowConfidenceCap            float64       // confidence cap below MinTrades
	HighFrequencyTradesPerDay   float64       // trades/day at or above which a wallet is high-frequency
	HighFrequencyRoundTripShare float64       // share of same-day round trips at or above which a wallet is high-frequency
	HighFrequencyConvictionCap  int           // conviction ceiling for high-frequency wallets
	RoundTripWindow             time.Duration // buy-to-sell gap counted as a round trip
	SpikeWindow                 time.Duration // lookback for spike entries
	SpikeMultiple               float64       // entry price over the window low that counts as a spike
	WhaleEntryUSD               float64       // median entry size for Whale Strategist
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinTrades:                   10,
		SaturationTrades:            150,
		LowConfidenceCap:            0.2,
		HighFrequencyTradesPerDay:   8,
		HighFrequencyRoundTripShare: 0.5,
		HighFrequencyConvictionCap:  50,
		RoundTripWindow:             24 * time.Hour,
		SpikeWindow:                 48 * time.Hour,
		SpikeMultiple:               1.3,
		WhaleEntryUSD:               10_000,
	}
}

// Engine scores wallets.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score computes a profile from trades and a holdings snapshot.
// The snapshot time is the reference instant for open positions.
// RunID and SourceTier are left for the caller.
func (e *Engine) Score(trades []domain.Trade, holdings *domain.Holdings) (*domain.WalletProfile, error) {
	if holdings == nil {
		return nil, &domain.ComputeError{
			Stage: "score",
			Err:   fmt.Errorf("%w: holdings snapshot missing", domain.ErrInsufficientInput),
		}
	}

	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	domain.SortTrades(sorted)

	asOf := holdings.FetchedAt
	if asOf.IsZero() && len(sorted) > 0 {
		asOf = time.UnixMilli(sorted[len(sorted)-1].Timestamp).UTC()
	}

	f := e.extract(sorted, asOf)
	div := diversify(holdings, sorted)

	p := &domain.WalletProfile{
		WalletAddress: holdings.Wallet,
		ComputedAt:    asOf,
		TradeCount:    len(sorted),
		Confidence:    e.confidence(len(sorted)),
		ModelVersion:  ModelVersion,
		Analytics: domain.ProfileAnalytics{
			SizingConsistency:        f.sizingConsistency,
			Diversification:          div.score,
			DiversificationLabel:     div.label,
			CategoryExposure:         div.exposure,
			TopHoldingsShare:         round4(div.topShare),
			TradesPerDay:             round4(f.tradesPerDay),
			RoundTripShare:           round4(f.roundTripShare),
			HighFrequency:            f.highFrequency,
			MedianHoldHours:          round4(f.medianHoldHours),
			SpikeEntryRate:           round4(f.spikeRate),
			MemecoinShare:            round4(f.memecoinShare),
			UnresolvedCategoryTrades: f.unresolved,
			PricedTrades:             f.priced,
			InputDigest:              idhash.TradesDigest(holdings.Wallet, ModelVersion, sorted),
		},
	}

	if len(sorted) < e.cfg.MinTrades {
		p.Scores = neutralScores()
		p.Archetype = domain.ArchetypeInsufficientData
		return p, nil
	}

	p.Scores = e.scores(f, div)
	p.Archetype = e.archetype(p.Scores, f, div, len(sorted))
	return p, nil
}

func neutralScores() map[domain.ScoreName]int {
	s := make(map[domain.ScoreName]int, len(domain.ScoreNames))
	for _, name := range domain.ScoreNames {
		s[name] = neutral
	}
	return s
}
