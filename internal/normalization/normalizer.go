// Package normalization turns raw provider records into the wallet's trade ledger.
package normalization

import (
	"context"
	"iter"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/pricing"
	"wallet-profiler/internal/tokenmeta"
)

// Normalizer classifies raw records relative to a wallet.
// It is safe for concurrent use; per-call memoization lives in a run.
type Normalizer struct {
	resolver tokenmeta.Resolver
	prices   pricing.Source
	logger   zerolog.Logger
}

// New creates a Normalizer. resolver and prices may be nil, in which case
// categories and USD values stay unknown.
func New(resolver tokenmeta.Resolver, prices pricing.Source, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		resolver: resolver,
		prices:   prices,
		logger:   logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize drains records and returns one trade per economically meaningful
// signature, ordered by (timestamp, slot, signature).
// Duplicate signatures keep the last record seen. Failed transactions and
// records that do not move the wallet's balances are dropped.
// The first iterator error aborts normalization and is returned unchanged.
func (n *Normalizer) Normalize(ctx context.Context, wallet string, records iter.Seq2[domain.RawRecord, error]) ([]domain.Trade, error) {
	latest := make(map[string]domain.RawRecord)
	var order []string

	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		if rec.Signature == "" {
			continue
		}
		if _, seen := latest[rec.Signature]; !seen {
			order = append(order, rec.Signature)
		}
		latest[rec.Signature] = rec
	}

	r := &run{
		Normalizer: n,
		ctx:        ctx,
		wallet:     wallet,
		categories: make(map[string]*domain.TokenCategory),
		prices:     make(map[string]*decimal.Decimal),
	}

	trades := make([]domain.Trade, 0, len(order))
	dropped := 0
	for _, sig := range order {
		rec := latest[sig]
		if rec.Failed {
			dropped++
			continue
		}
		t, ok := r.classify(rec)
		if !ok {
			dropped++
			continue
		}
		trades = append(trades, t)
	}

	domain.SortTrades(trades)

	n.logger.Debug().
		Str("wallet", wallet).
		Int("records", len(order)).
		Int("trades", len(trades)).
		Int("dropped", dropped).
		Msg("normalized")

	return trades, nil
}

// run holds memoized lookups for a single Normalize call.
type run struct {
	*Normalizer
	ctx        context.Context
	wallet     string
	categories map[string]*domain.TokenCategory
	prices     map[string]*decimal.Decimal
}

func isQuote(mint string) bool {
	return mint == domain.MintWSOL || mint == domain.MintUSDC || mint == domain.MintUSDT
}

// legs is the wallet's net movement in one record.
type legs struct {
	tokens map[string]decimal.Decimal // non-quote mints, positive = received
	sol    decimal.Decimal            // native plus WSOL, positive = received
	stable map[string]decimal.Decimal // USDC/USDT
}

func (r *run) netLegs(rec domain.RawRecord) legs {
	l := legs{
		tokens: make(map[string]decimal.Decimal),
		stable: make(map[string]decimal.Decimal),
	}

	for _, nt := range rec.NativeTransfers {
		amt := domain.LamportsToSOL(nt.Lamports)
		if nt.To == r.wallet {
			l.sol = l.sol.Add(amt)
		}
		if nt.From == r.wallet {
			l.sol = l.sol.Sub(amt)
		}
	}

	for _, tt := range rec.TokenTransfers {
		var sign decimal.Decimal
		switch {
		case tt.To == r.wallet && tt.From == r.wallet:
			continue
		case tt.To == r.wallet:
			sign = tt.Amount
		case tt.From == r.wallet:
			sign = tt.Amount.Neg()
		default:
			continue
		}

		switch tt.Mint {
		case domain.MintWSOL:
			l.sol = l.sol.Add(sign)
		case domain.MintUSDC, domain.MintUSDT:
			l.stable[tt.Mint] = l.stable[tt.Mint].Add(sign)
		default:
			l.tokens[tt.Mint] = l.tokens[tt.Mint].Add(sign)
		}
	}

	for m, v := range l.tokens {
		if v.IsZero() {
			delete(l.tokens, m)
		}
	}
	for m, v := range l.stable {
		if v.IsZero() {
			delete(l.stable, m)
		}
	}
	return l
}

// largest returns the mint with the largest movement in the given direction.
// Ties break on mint so the result is deterministic.
func largest(m map[string]decimal.Decimal, received bool) (string, decimal.Decimal, bool) {
	mints := make([]string, 0, len(m))
	for mint, v := range m {
		if v.IsPositive() == received {
			mints = append(mints, mint)
		}
	}
	if len(mints) == 0 {
		return "", decimal.Zero, false
	}
	sort.Strings(mints)

	best := mints[0]
	for _, mint := range mints[1:] {
		if m[mint].Abs().GreaterThan(m[best].Abs()) {
			best = mint
		}
	}
	return best, m[best].Abs(), true
}

func (r *run) classify(rec domain.RawRecord) (domain.Trade, bool) {
	l := r.netLegs(rec)

	t := domain.Trade{
		Signature: rec.Signature,
		Wallet:    r.wallet,
		Timestamp: rec.Timestamp,
		Slot:      rec.Slot,
		Venue:     rec.Source,
		FeePaid:   decimal.Zero,
	}
	if rec.FeePayer == r.wallet {
		t.FeePaid = domain.LamportsToSOL(rec.Fee)
	}

	inMint, inAmt, hasIn := largest(l.tokens, true)
	outMint, outAmt, hasOut := largest(l.tokens, false)
	quoteUSD, quoteKnown, hasQuote := r.quoteValue(l)

	switch {
	case hasIn && hasOut:
		t.Direction = domain.DirectionSwap
		t.TokenMint, t.AmountRaw = inMint, inAmt
		t.AmountUSD = r.valueOf(inMint, inAmt)

	case hasIn && hasQuote && quoteUSD.IsNegative():
		t.Direction = domain.DirectionBuy
		t.TokenMint, t.AmountRaw = inMint, inAmt
		if quoteKnown {
			v := quoteUSD.Abs()
			t.AmountUSD = &v
		}

	case hasOut && hasQuote && quoteUSD.IsPositive():
		t.Direction = domain.DirectionSell
		t.TokenMint, t.AmountRaw = outMint, outAmt
		if quoteKnown {
			v := quoteUSD
			t.AmountUSD = &v
		}

	case hasIn:
		t.Direction = domain.DirectionTransfer
		t.TokenMint, t.AmountRaw = inMint, inAmt
		t.AmountUSD = r.valueOf(inMint, inAmt)

	case hasOut:
		t.Direction = domain.DirectionTransfer
		t.TokenMint, t.AmountRaw = outMint, outAmt
		t.AmountUSD = r.valueOf(outMint, outAmt)

	default:
		return r.classifyQuoteOnly(t, l)
	}

	t.TokenCategory = r.category(t.TokenMint)
	return t, true
}

// classifyQuoteOnly handles records that move only SOL and stablecoins.
func (r *run) classifyQuoteOnly(t domain.Trade, l legs) (domain.Trade, bool) {
	stableIn, stableInAmt, hasStableIn := largest(l.stable, true)
	stableOut, stableOutAmt, hasStableOut := largest(l.stable, false)
	solIn, solOut := l.sol.IsPositive(), l.sol.IsNegative()

	switch {
	case (solOut && hasStableIn) || (hasStableOut && hasStableIn):
		t.Direction = domain.DirectionSwap
		t.TokenMint, t.AmountRaw = stableIn, stableInAmt
	case hasStableOut && solIn:
		t.Direction = domain.DirectionSwap
		t.TokenMint, t.AmountRaw = domain.MintWSOL, l.sol.Abs()
	case hasStableIn:
		t.Direction = domain.DirectionTransfer
		t.TokenMint, t.AmountRaw = stableIn, stableInAmt
	case hasStableOut:
		t.Direction = domain.DirectionTransfer
		t.TokenMint, t.AmountRaw = stableOut, stableOutAmt
	case solIn || solOut:
		t.Direction = domain.DirectionTransfer
		t.TokenMint, t.AmountRaw = domain.MintWSOL, l.sol.Abs()
	default:
		return domain.Trade{}, false
	}

	t.AmountUSD = r.valueOf(t.TokenMint, t.AmountRaw)
	t.TokenCategory = r.category(t.TokenMint)
	return t, true
}

// quoteValue returns the USD value of the quote legs. known is false when
// SOL moved but its price is unavailable.
func (r *run) quoteValue(l legs) (usd decimal.Decimal, known, present bool) {
	usd = decimal.Zero
	known = true
	for _, v := range l.stable {
		usd = usd.Add(v)
		present = true
	}
	if !l.sol.IsZero() {
		present = true
		if p := r.price(domain.MintWSOL); p != nil {
			usd = usd.Add(l.sol.Mul(*p))
		} else {
			known = false
			// Direction still follows the sign of the SOL leg.
			usd = usd.Add(l.sol)
		}
	}
	return usd, known, present
}

func (r *run) valueOf(mint string, amount decimal.Decimal) *decimal.Decimal {
	p := r.price(mint)
	if p == nil {
		return nil
	}
	v := amount.Mul(*p)
	return &v
}

func (r *run) price(mint string) *decimal.Decimal {
	if p, ok := r.prices[mint]; ok {
		return p
	}
	var result *decimal.Decimal
	if r.Normalizer.prices != nil {
		p, err := r.Normalizer.prices.PriceUSD(r.ctx, mint)
		if err == nil {
			result = &p
		} else {
			r.logger.Debug().Err(err).Str("mint", mint).Msg("no price")
		}
	}
	r.prices[mint] = result
	return result
}

func (r *run) category(mint string) *domain.TokenCategory {
	if c, ok := r.categories[mint]; ok {
		return c
	}
	var c *domain.TokenCategory
	if r.resolver != nil {
		c = tokenmeta.CategoryOf(r.ctx, r.resolver, mint)
	}
	r.categories[mint] = c
	return c
}
