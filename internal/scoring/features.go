package scoring

import (
	"math"
	"time"

	"wallet-profiler/internal/domain"
)

const msPerDay = float64(24 * time.Hour / time.Millisecond)

// features are the behavioral measurements the scores are built from.
type features struct {
	tradesPerDay      float64
	roundTripShare    float64
	highFrequency     bool
	medianHoldHours   float64 // -1 when the wallet never entered a position
	spikeRate         float64
	memecoinShare     float64
	sizingConsistency int
	medianEntryUSD    float64
	unresolved        int
	priced            int
}

// entry reports whether a trade opens a position in TokenMint.
func entry(t *domain.Trade) bool {
	return t.Direction == domain.DirectionBuy || t.Direction == domain.DirectionSwap
}

func active(t *domain.Trade) bool {
	return t.Direction != domain.DirectionTransfer
}

// extract computes features from trades sorted by (timestamp, slot, signature).
func (e *Engine) extract(trades []domain.Trade, asOf time.Time) features {
	f := features{medianHoldHours: -1}

	var (
		activeCount int
		firstTS     int64
		lastTS      int64
		entries     int
		memecoins   int
		entrySizes  []float64
	)
	for i := range trades {
		t := &trades[i]
		if t.TokenCategory == nil {
			f.unresolved++
		}
		if t.AmountUSD != nil {
			f.priced++
		}
		if !active(t) {
			continue
		}
		if activeCount == 0 {
			firstTS = t.Timestamp
		}
		lastTS = t.Timestamp
		activeCount++

		if entry(t) {
			entries++
			if t.TokenCategory != nil && *t.TokenCategory == domain.CategoryMemecoin {
				memecoins++
			}
			if t.AmountUSD != nil && t.AmountUSD.IsPositive() {
				entrySizes = append(entrySizes, t.AmountUSD.InexactFloat64())
			}
		}
	}

	if activeCount > 0 {
		days := math.Max(float64(lastTS-firstTS)/msPerDay, 1)
		f.tradesPerDay = float64(activeCount) / days
	}
	if entries > 0 {
		f.memecoinShare = float64(memecoins) / float64(entries)
	}

	holds, roundTrips := e.holdPeriods(trades, asOf)
	if len(holds) > 0 {
		f.medianHoldHours = median(holds)
	}
	if entries > 0 {
		f.roundTripShare = float64(roundTrips) / float64(entries)
	}
	f.highFrequency = activeCount > 0 &&
		(f.tradesPerDay >= e.cfg.HighFrequencyTradesPerDay || f.roundTripShare >= e.cfg.HighFrequencyRoundTripShare)

	f.spikeRate = e.spikeRate(trades)
	f.sizingConsistency = sizingConsistency(entrySizes)
	if len(entrySizes) > 0 {
		f.medianEntryUSD = median(entrySizes)
	}
	return f
}

// holdPeriods matches sells against earlier entries of the same mint FIFO.
// It returns hold durations in hours, open entries measured up to asOf, and
// the number of matches closed within RoundTripWindow.
func (e *Engine) holdPeriods(trades []domain.Trade, asOf time.Time) ([]float64, int) {
	open := make(map[string][]int64)
	var holds []float64
	roundTrips := 0
	window := e.cfg.RoundTripWindow.Milliseconds()

	for i := range trades {
		t := &trades[i]
		switch {
		case entry(t):
			open[t.TokenMint] = append(open[t.TokenMint], t.Timestamp)
		case t.Direction == domain.DirectionSell:
			queue := open[t.TokenMint]
			if len(queue) == 0 {
				continue
			}
			held := t.Timestamp - queue[0]
			open[t.TokenMint] = queue[1:]
			holds = append(holds, float64(held)/float64(time.Hour/time.Millisecond))
			if held <= window {
				roundTrips++
			}
		}
	}

	ref := asOf.UnixMilli()
	for _, mint := range sortedKeys(open) {
		for _, ts := range open[mint] {
			if ref > ts {
				holds = append(holds, float64(ref-ts)/float64(time.Hour/time.Millisecond))
			}
		}
	}
	return holds, roundTrips
}

// spikeRate is the share of priced entries made at SpikeMultiple or more
// above the lowest price the wallet traded the same mint at within SpikeWindow.
// Entries without a prior observation cannot be judged; the denominator
// is at least three so one lucky observation does not dominate.
func (e *Engine) spikeRate(trades []domain.Trade) float64 {
	type obs struct {
		ts    int64
		price float64
	}
	seen := make(map[string][]obs)
	window := e.cfg.SpikeWindow.Milliseconds()
	judged, spikes := 0, 0

	for i := range trades {
		t := &trades[i]
		up := t.UnitPriceUSD()
		if up == nil || !up.IsPositive() {
			continue
		}
		price := up.InexactFloat64()

		if entry(t) {
			low := math.Inf(1)
			for _, o := range seen[t.TokenMint] {
				if t.Timestamp-o.ts <= window {
					low = math.Min(low, o.price)
				}
			}
			if !math.IsInf(low, 1) {
				judged++
				if price >= low*e.cfg.SpikeMultiple {
					spikes++
				}
			}
		}
		seen[t.TokenMint] = append(seen[t.TokenMint], obs{ts: t.Timestamp, price: price})
	}

	if judged == 0 {
		return 0
	}
	return float64(spikes) / float64(max(judged, 3))
}
