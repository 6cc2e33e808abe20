package scoring

import (
	"sort"

	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
)

const (
	unresolvedBucket = "unresolved"

	concentratedTopShare = 0.9
	concentratedHHI      = 0.5
	overDiversifiedMin   = 20
	overDiversifiedTop   = 0.4
	overDiversifiedHHI   = 0.35
)

type diversification struct {
	score    int
	label    string
	exposure map[string]float64 // category -> share of value
	topShare float64            // share held by the three largest tokens
	known    bool
}

// diversify weights exposure by current USD value. Without a priced
// snapshot it falls back to the USD volume of entries in the trade window.
func diversify(h *domain.Holdings, trades []domain.Trade) diversification {
	byMint := make(map[string]decimal.Decimal)
	catOf := make(map[string]string)

	for _, p := range h.Positions {
		if p.ValueUSD == nil || !p.ValueUSD.IsPositive() {
			continue
		}
		byMint[p.Mint] = byMint[p.Mint].Add(*p.ValueUSD)
		catOf[p.Mint] = bucket(p.Category)
	}
	if len(byMint) == 0 {
		for i := range trades {
			t := &trades[i]
			if !entry(t) || t.AmountUSD == nil || !t.AmountUSD.IsPositive() {
				continue
			}
			byMint[t.TokenMint] = byMint[t.TokenMint].Add(*t.AmountUSD)
			catOf[t.TokenMint] = bucket(t.TokenCategory)
		}
	}

	total := decimal.Zero
	byCat := make(map[string]decimal.Decimal)
	values := make([]decimal.Decimal, 0, len(byMint))
	for _, mint := range sortedKeys(byMint) {
		v := byMint[mint]
		total = total.Add(v)
		byCat[catOf[mint]] = byCat[catOf[mint]].Add(v)
		values = append(values, v)
	}
	if !total.IsPositive() {
		return diversification{score: neutral, label: domain.DiversificationUnknown}
	}

	d := diversification{exposure: make(map[string]float64, len(byCat)), known: true}
	var hhi float64
	for _, cat := range sortedKeys(byCat) {
		share := byCat[cat].Div(total).InexactFloat64()
		d.exposure[cat] = round4(share)
		hhi += share * share
	}

	sort.SliceStable(values, func(i, j int) bool { return values[i].GreaterThan(values[j]) })
	top := decimal.Zero
	for i := 0; i < len(values) && i < 3; i++ {
		top = top.Add(values[i])
	}
	d.topShare = top.Div(total).InexactFloat64()

	switch {
	case d.topShare >= concentratedTopShare || hhi >= concentratedHHI:
		d.label = domain.DiversificationConcentrated
	case len(values) >= overDiversifiedMin && d.topShare < overDiversifiedTop && hhi < overDiversifiedHHI:
		d.label = domain.DiversificationOverDiversified
	default:
		d.label = domain.DiversificationBalanced
	}
	d.score = clampScore(50*(1-hhi) + 50*(1-d.topShare))
	return d
}

func bucket(c *domain.TokenCategory) string {
	if c == nil {
		return unresolvedBucket
	}
	return c.String()
}

// concentration is the top-holdings share on 0-100, neutral when unknown.
func (d diversification) concentration() float64 {
	if !d.known {
		return neutral
	}
	return 100 * d.topShare
}
