package scoring

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/idhash"
)

const testWallet = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func mkTrade(sig string, ts time.Time, dir domain.Direction, mint string, amount, usd float64, cat *domain.TokenCategory) domain.Trade {
	t := domain.Trade{
		Signature:     sig,
		Wallet:        testWallet,
		Timestamp:     ts.UnixMilli(),
		Slot:          ts.Unix(),
		Direction:     dir,
		TokenMint:     mint,
		TokenCategory: cat,
		AmountRaw:     decimal.NewFromFloat(amount),
	}
	if usd >= 0 {
		v := decimal.NewFromFloat(usd)
		t.AmountUSD = &v
	}
	return t
}

func position(mint string, usd float64, cat *domain.TokenCategory) domain.Position {
	v := decimal.NewFromFloat(usd)
	return domain.Position{Mint: mint, Amount: decimal.NewFromInt(1), ValueUSD: &v, Category: cat}
}

func emptyHoldings(at time.Time) *domain.Holdings {
	return &domain.Holdings{Wallet: testWallet, FetchedAt: at}
}

func TestScore_NoTradesIsInsufficientData(t *testing.T) {
	e := NewEngine(DefaultConfig())

	p, err := e.Score(nil, emptyHoldings(t0))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if p.Archetype != domain.ArchetypeInsufficientData {
		t.Errorf("expected %q, got %q", domain.ArchetypeInsufficientData, p.Archetype)
	}
	if p.Confidence > DefaultConfig().LowConfidenceCap {
		t.Errorf("expected confidence <= %v, got %v", DefaultConfig().LowConfidenceCap, p.Confidence)
	}
	if len(p.Scores) != len(domain.ScoreNames) {
		t.Fatalf("expected %d scores, got %d", len(domain.ScoreNames), len(p.Scores))
	}
	for _, name := range domain.ScoreNames {
		if p.Scores[name] != 50 {
			t.Errorf("score %s: expected 50, got %d", name, p.Scores[name])
		}
	}
	if p.TradeCount != 0 {
		t.Errorf("expected trade count 0, got %d", p.TradeCount)
	}
	if p.WalletAddress != testWallet {
		t.Errorf("expected wallet %s, got %s", testWallet, p.WalletAddress)
	}
	if p.ModelVersion != ModelVersion {
		t.Errorf("expected model version %s, got %s", ModelVersion, p.ModelVersion)
	}
}

func TestScore_SparseSampleStaysNeutral(t *testing.T) {
	e := NewEngine(DefaultConfig())
	var trades []domain.Trade
	for i := 0; i < 9; i++ {
		trades = append(trades, mkTrade(fmt.Sprintf("s%d", i), t0.Add(time.Duration(i)*time.Minute),
			domain.DirectionBuy, "MEME", 1, math.Pow(2, float64(i)), domain.CategoryMemecoin.Ptr()))
	}

	p, err := e.Score(trades, emptyHoldings(t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p.Archetype != domain.ArchetypeInsufficientData {
		t.Errorf("expected %q, got %q", domain.ArchetypeInsufficientData, p.Archetype)
	}
	for _, name := range domain.ScoreNames {
		if p.Scores[name] != 50 {
			t.Errorf("score %s: expected 50, got %d", name, p.Scores[name])
		}
	}
	if p.Confidence > 0.2 {
		t.Errorf("expected capped confidence, got %v", p.Confidence)
	}
}

func TestScore_NilHoldingsFails(t *testing.T) {
	e := NewEngine(DefaultConfig())

	p, err := e.Score([]domain.Trade{mkTrade("a", t0, domain.DirectionBuy, "X", 1, 1, nil)}, nil)
	if err == nil {
		t.Fatal("expected error for missing holdings")
	}
	if p != nil {
		t.Error("expected no profile on failure")
	}
	if !errors.Is(err, domain.ErrComputeFailed) {
		t.Errorf("expected ErrComputeFailed, got %v", err)
	}
	if !errors.Is(err, domain.ErrInsufficientInput) {
		t.Errorf("expected ErrInsufficientInput, got %v", err)
	}
}

func TestScore_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	trades := randomWallet(rand.New(rand.NewSource(7)), 80)
	holdings := &domain.Holdings{
		Wallet:    testWallet,
		FetchedAt: t0.Add(30 * 24 * time.Hour),
		Positions: []domain.Position{
			position("A", 1200.5, domain.CategoryMemecoin.Ptr()),
			position("B", 300.25, nil),
			position("C", 77.125, domain.CategoryBluechip.Ptr()),
		},
	}

	first, err := e.Score(trades, holdings)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	shuffled := make([]domain.Trade, len(trades))
	copy(shuffled, trades)
	rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i := 0; i < 5; i++ {
		again, err := e.Score(shuffled, holdings)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if !reflect.DeepEqual(first.Scores, again.Scores) {
			t.Fatalf("run %d: scores differ: %v vs %v", i, first.Scores, again.Scores)
		}
		if !reflect.DeepEqual(first.Analytics, again.Analytics) {
			t.Fatalf("run %d: analytics differ", i)
		}
		if first.Archetype != again.Archetype {
			t.Fatalf("run %d: archetype differs: %s vs %s", i, first.Archetype, again.Archetype)
		}
	}
}

func TestScore_DoesNotMutateInput(t *testing.T) {
	e := NewEngine(DefaultConfig())
	trades := []domain.Trade{
		mkTrade("b", t0.Add(time.Hour), domain.DirectionSell, "X", 1, 2, nil),
		mkTrade("a", t0, domain.DirectionBuy, "X", 1, 1, nil),
	}

	if _, err := e.Score(trades, emptyHoldings(t0)); err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if trades[0].Signature != "b" {
		t.Error("input slice was reordered")
	}
}

func TestScore_InputDigestTracksTradeWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())
	trades := []domain.Trade{
		mkTrade("b", t0.Add(time.Hour), domain.DirectionSell, "X", 1, 2, nil),
		mkTrade("a", t0, domain.DirectionBuy, "X", 1, 1, nil),
	}

	p, err := e.Score(trades, emptyHoldings(t0.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := idhash.TradesDigest(testWallet, ModelVersion, []domain.Trade{trades[1], trades[0]})
	if p.Analytics.InputDigest != want {
		t.Errorf("expected digest over ledger-ordered trades %s, got %s", want, p.Analytics.InputDigest)
	}

	more := append(trades, mkTrade("c", t0.Add(90*time.Minute), domain.DirectionBuy, "Y", 1, 1, nil))
	p2, err := e.Score(more, emptyHoldings(t0.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p2.Analytics.InputDigest == p.Analytics.InputDigest {
		t.Error("expected a different digest once the trade window changes")
	}
}

func TestScore_ScoreInvariantsHold(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rng := rand.New(rand.NewSource(42))

	for w := 0; w < 200; w++ {
		trades := randomWallet(rng, 10+rng.Intn(150))
		holdings := &domain.Holdings{Wallet: testWallet, FetchedAt: t0.Add(60 * 24 * time.Hour)}
		for i := 0; i < rng.Intn(8); i++ {
			holdings.Positions = append(holdings.Positions,
				position(fmt.Sprintf("M%d", i), rng.Float64()*5000, categories[rng.Intn(len(categories))]))
		}

		p, err := e.Score(trades, holdings)
		if err != nil {
			t.Fatalf("wallet %d: Score failed: %v", w, err)
		}
		for name, v := range p.Scores {
			if v < 0 || v > 100 {
				t.Errorf("wallet %d: score %s out of range: %d", w, name, v)
			}
		}
		if p.Scores[domain.ScoreFOMO] > 60 && p.Scores[domain.ScoreDegen] < 20 {
			t.Errorf("wallet %d: fomo %d with degen %d", w, p.Scores[domain.ScoreFOMO], p.Scores[domain.ScoreDegen])
		}
		if p.Analytics.HighFrequency && p.Scores[domain.ScoreConviction] > 70 {
			t.Errorf("wallet %d: conviction %d on a high-frequency wallet", w, p.Scores[domain.ScoreConviction])
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("wallet %d: confidence out of range: %v", w, p.Confidence)
		}
	}
}

func TestScore_ConcentratedHighFrequencyWallet(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// 96 trades across 25 tokens over three days, sized large.
	var trades []domain.Trade
	for i := 0; i < 96; i++ {
		mint := fmt.Sprintf("TOKEN%02d", i%25)
		dir := domain.DirectionBuy
		if i%2 == 1 {
			dir = domain.DirectionSell
		}
		ts := t0.Add(time.Duration(i) * 45 * time.Minute)
		trades = append(trades, mkTrade(fmt.Sprintf("sig%03d", i), ts, dir, mint, 1000, 50_000, domain.CategoryDefi.Ptr()))
	}

	holdings := &domain.Holdings{Wallet: testWallet, FetchedAt: t0.Add(80 * time.Hour)}
	holdings.Positions = append(holdings.Positions,
		position("TOKEN00", 400_000, domain.CategoryDefi.Ptr()),
		position("TOKEN01", 300_000, domain.CategoryMemecoin.Ptr()),
		position("TOKEN02", 250_000, domain.CategoryBluechip.Ptr()),
	)
	for i := 3; i < 25; i++ {
		holdings.Positions = append(holdings.Positions,
			position(fmt.Sprintf("TOKEN%02d", i), 50_000.0/22, domain.CategoryDefi.Ptr()))
	}

	p, err := e.Score(trades, holdings)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if p.Analytics.DiversificationLabel != domain.DiversificationConcentrated {
		t.Errorf("expected %q, got %q", domain.DiversificationConcentrated, p.Analytics.DiversificationLabel)
	}
	if p.Analytics.TopHoldingsShare < 0.94 || p.Analytics.TopHoldingsShare > 0.96 {
		t.Errorf("expected top holdings share ~0.95, got %v", p.Analytics.TopHoldingsShare)
	}
	if !p.Analytics.HighFrequency {
		t.Fatalf("expected high-frequency wallet, trades/day=%v", p.Analytics.TradesPerDay)
	}
	if c := p.Scores[domain.ScoreConviction]; c > DefaultConfig().HighFrequencyConvictionCap {
		t.Errorf("expected conviction capped at %d, got %d", DefaultConfig().HighFrequencyConvictionCap, c)
	}
	if p.TradeCount != 96 {
		t.Errorf("expected trade count 96, got %d", p.TradeCount)
	}
}

func TestScore_DiamondHands(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var trades []domain.Trade
	for i := 0; i < 20; i++ {
		ts := t0.Add(time.Duration(i) * 10 * 24 * time.Hour)
		trades = append(trades, mkTrade(fmt.Sprintf("d%02d", i), ts, domain.DirectionBuy,
			fmt.Sprintf("BLUE%d", i%3), 10, 100, domain.CategoryBluechip.Ptr()))
	}
	holdings := &domain.Holdings{
		Wallet:    testWallet,
		FetchedAt: t0.Add(230 * 24 * time.Hour),
		Positions: []domain.Position{
			position("BLUE0", 5000, domain.CategoryBluechip.Ptr()),
			position("BLUE1", 3000, domain.CategoryBluechip.Ptr()),
			position("BLUE2", 2000, domain.CategoryBluechip.Ptr()),
		},
	}

	p, err := e.Score(trades, holdings)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p.Archetype != domain.ArchetypeDiamondHands {
		t.Errorf("expected %q, got %q (scores %v)", domain.ArchetypeDiamondHands, p.Archetype, p.Scores)
	}
	if p.Scores[domain.ScoreConviction] < 80 {
		t.Errorf("expected high conviction, got %d", p.Scores[domain.ScoreConviction])
	}
	if p.Analytics.SizingConsistency != 100 {
		t.Errorf("expected sizing consistency 100, got %d", p.Analytics.SizingConsistency)
	}
}

func TestScore_Scalper(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var trades []domain.Trade
	for i := 0; i < 20; i++ {
		ts := t0.Add(time.Duration(i) * 30 * time.Minute)
		trades = append(trades,
			mkTrade(fmt.Sprintf("b%02d", i), ts, domain.DirectionBuy, "SCALP", 100, 50, domain.CategoryDefi.Ptr()),
			mkTrade(fmt.Sprintf("s%02d", i), ts.Add(10*time.Minute), domain.DirectionSell, "SCALP", 100, 50, domain.CategoryDefi.Ptr()),
		)
	}

	p, err := e.Score(trades, emptyHoldings(t0.Add(12*time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p.Archetype != domain.ArchetypeScalper {
		t.Errorf("expected %q, got %q (scores %v)", domain.ArchetypeScalper, p.Archetype, p.Scores)
	}
	if p.Analytics.RoundTripShare != 1 {
		t.Errorf("expected round-trip share 1, got %v", p.Analytics.RoundTripShare)
	}
	if p.Scores[domain.ScoreConviction] > 50 {
		t.Errorf("expected capped conviction, got %d", p.Scores[domain.ScoreConviction])
	}
}

func TestScore_SpikeChaserIsFOMOAndDegen(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var trades []domain.Trade
	for i := 0; i < 24; i++ {
		price := math.Pow(1.5, float64(i))
		trades = append(trades, mkTrade(fmt.Sprintf("p%02d", i), t0.Add(time.Duration(i)*time.Hour),
			domain.DirectionBuy, "PUMP", 1, price, domain.CategoryMemecoin.Ptr()))
	}

	p, err := e.Score(trades, emptyHoldings(t0.Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p.Analytics.SpikeEntryRate != 1 {
		t.Errorf("expected spike entry rate 1, got %v", p.Analytics.SpikeEntryRate)
	}
	if p.Scores[domain.ScoreFOMO] < 60 {
		t.Errorf("expected fomo >= 60, got %d", p.Scores[domain.ScoreFOMO])
	}
	if p.Scores[domain.ScoreDegen] < 60 {
		t.Errorf("expected degen >= 60, got %d", p.Scores[domain.ScoreDegen])
	}
	if p.Archetype != domain.ArchetypeDegenApe {
		t.Errorf("expected %q, got %q", domain.ArchetypeDegenApe, p.Archetype)
	}
}

func TestScore_UnresolvedCategoryIsItsOwnBucket(t *testing.T) {
	e := NewEngine(DefaultConfig())

	var trades []domain.Trade
	for i := 0; i < 12; i++ {
		var cat *domain.TokenCategory
		if i%2 == 0 {
			cat = domain.CategoryDefi.Ptr()
		}
		trades = append(trades, mkTrade(fmt.Sprintf("u%02d", i), t0.Add(time.Duration(i)*24*time.Hour),
			domain.DirectionBuy, fmt.Sprintf("T%d", i), 1, 100, cat))
	}

	p, err := e.Score(trades, emptyHoldings(t0.Add(20*24*time.Hour)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if p.TradeCount != 12 {
		t.Errorf("expected all 12 trades counted, got %d", p.TradeCount)
	}
	if p.Analytics.UnresolvedCategoryTrades != 6 {
		t.Errorf("expected 6 unresolved trades, got %d", p.Analytics.UnresolvedCategoryTrades)
	}
	if got := p.Analytics.CategoryExposure[unresolvedBucket]; got != 0.5 {
		t.Errorf("expected unresolved exposure 0.5, got %v", got)
	}
	if got := p.Analytics.CategoryExposure[domain.CategoryDefi.String()]; got != 0.5 {
		t.Errorf("expected defi exposure 0.5, got %v", got)
	}
}

func TestConfidence_MonotonicAndSaturating(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cfg := DefaultConfig()

	prev := -1.0
	for n := 0; n <= 300; n++ {
		c := e.confidence(n)
		if c < prev {
			t.Fatalf("confidence decreased at n=%d: %v < %v", n, c, prev)
		}
		if n < cfg.MinTrades && c > cfg.LowConfidenceCap {
			t.Errorf("n=%d: expected confidence <= %v, got %v", n, cfg.LowConfidenceCap, c)
		}
		if n >= cfg.SaturationTrades && c != 1 {
			t.Errorf("n=%d: expected saturated confidence, got %v", n, c)
		}
		prev = c
	}
	if e.confidence(0) != 0 {
		t.Errorf("expected zero confidence with no trades")
	}
}

func TestArchetype_TieBreakPrefersLargerSample(t *testing.T) {
	e := NewEngine(DefaultConfig())
	scores := map[domain.ScoreName]int{
		domain.ScoreDegen:      70,
		domain.ScoreFOMO:       10,
		domain.ScoreConviction: 20,
		domain.ScorePatience:   20,
	}
	// scalper strength: 100 * 11.2 / 16 = 70, equal to degen
	f := features{highFrequency: true, tradesPerDay: 11.2}

	if got := e.archetype(scores, f, diversification{}, 40); got != domain.ArchetypeScalper {
		t.Errorf("expected %q on tie, got %q", domain.ArchetypeScalper, got)
	}
	if got := e.archetype(scores, f, diversification{}, 25); got != domain.ArchetypeDegenApe {
		t.Errorf("expected %q when sample cannot support scalper, got %q", domain.ArchetypeDegenApe, got)
	}
}

func TestArchetype_TieBreakByName(t *testing.T) {
	e := NewEngine(DefaultConfig())
	scores := map[domain.ScoreName]int{
		domain.ScoreDegen: 75,
		domain.ScoreFOMO:  75,
	}

	if got := e.archetype(scores, features{}, diversification{}, 50); got != domain.ArchetypeDegenApe {
		t.Errorf("expected %q, got %q", domain.ArchetypeDegenApe, got)
	}
}

func TestArchetype_FallbackIsBalancedInvestor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	scores := map[domain.ScoreName]int{domain.ScorePatience: 90}

	if got := e.archetype(scores, features{}, diversification{}, 12); got != domain.ArchetypeBalancedInvestor {
		t.Errorf("expected %q, got %q", domain.ArchetypeBalancedInvestor, got)
	}
}

func TestSizingConsistency(t *testing.T) {
	tests := []struct {
		name  string
		sizes []float64
		want  int
	}{
		{"too few samples", []float64{10, 1000}, 50},
		{"identical sizes", []float64{100, 100, 100, 100}, 100},
		{"wildly varying", []float64{1, 1, 1, 10_000}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizingConsistency(tt.sizes); got != tt.want {
				t.Errorf("sizingConsistency(%v) = %d, want %d", tt.sizes, got, tt.want)
			}
		})
	}
}

func TestDiversify_NoValueIsUnknown(t *testing.T) {
	d := diversify(emptyHoldings(t0), nil)
	if d.label != domain.DiversificationUnknown {
		t.Errorf("expected %q, got %q", domain.DiversificationUnknown, d.label)
	}
	if d.score != 50 {
		t.Errorf("expected neutral score, got %d", d.score)
	}
}

func TestDiversify_OverDiversified(t *testing.T) {
	h := emptyHoldings(t0)
	cats := []*domain.TokenCategory{
		domain.CategoryDefi.Ptr(), domain.CategoryMemecoin.Ptr(), domain.CategoryBluechip.Ptr(),
		domain.CategoryStablecoin.Ptr(), domain.CategoryLiquidStaking.Ptr(), nil,
	}
	for i := 0; i < 30; i++ {
		h.Positions = append(h.Positions, position(fmt.Sprintf("M%02d", i), 100, cats[i%len(cats)]))
	}

	d := diversify(h, nil)
	if d.label != domain.DiversificationOverDiversified {
		t.Errorf("expected %q, got %q", domain.DiversificationOverDiversified, d.label)
	}
}

var categories = []*domain.TokenCategory{
	nil,
	domain.CategoryMemecoin.Ptr(),
	domain.CategoryDefi.Ptr(),
	domain.CategoryBluechip.Ptr(),
	domain.CategoryStablecoin.Ptr(),
}

func randomWallet(rng *rand.Rand, n int) []domain.Trade {
	dirs := []domain.Direction{domain.DirectionBuy, domain.DirectionSell, domain.DirectionSwap, domain.DirectionTransfer}
	trades := make([]domain.Trade, 0, n)
	ts := t0
	for i := 0; i < n; i++ {
		ts = ts.Add(time.Duration(rng.Intn(12*60)) * time.Minute)
		usd := -1.0
		if rng.Intn(5) > 0 {
			usd = math.Round(rng.Float64()*2000*100) / 100
		}
		trades = append(trades, mkTrade(
			fmt.Sprintf("r%04d", i), ts, dirs[rng.Intn(len(dirs))],
			fmt.Sprintf("M%d", rng.Intn(6)), float64(1+rng.Intn(500)), usd,
			categories[rng.Intn(len(categories))],
		))
	}
	return trades
}
