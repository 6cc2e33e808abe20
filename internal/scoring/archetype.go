package scoring

import (
	"sort"

	"wallet-profiler/internal/domain"
)

// rule is one archetype candidate. match returns the rule's strength
// (0-100) and whether it applies.
type rule struct {
	archetype domain.Archetype
	minTrades int
	match     func(s map[domain.ScoreName]int, f features, d diversification, cfg Config) (int, bool)
}

var rules = []rule{
	{
		archetype: domain.ArchetypeScalper,
		minTrades: 30,
		match: func(s map[domain.ScoreName]int, f features, _ diversification, cfg Config) (int, bool) {
			if !f.highFrequency {
				return 0, false
			}
			freq := clampScore(100 * f.tradesPerDay / (2 * cfg.HighFrequencyTradesPerDay))
			return max(freq, clampScore(100*f.roundTripShare)), true
		},
	},
	{
		archetype: domain.ArchetypeDegenApe,
		minTrades: 20,
		match: func(s map[domain.ScoreName]int, _ features, _ diversification, _ Config) (int, bool) {
			return s[domain.ScoreDegen], s[domain.ScoreDegen] >= 60
		},
	},
	{
		archetype: domain.ArchetypeFOMOChaser,
		minTrades: 20,
		match: func(s map[domain.ScoreName]int, _ features, _ diversification, _ Config) (int, bool) {
			return s[domain.ScoreFOMO], s[domain.ScoreFOMO] >= 60
		},
	},
	{
		archetype: domain.ArchetypeDiamondHands,
		minTrades: 15,
		match: func(s map[domain.ScoreName]int, _ features, _ diversification, _ Config) (int, bool) {
			c, p := s[domain.ScoreConviction], s[domain.ScorePatience]
			return (c + p) / 2, c >= 65 && p >= 60
		},
	},
	{
		archetype: domain.ArchetypeWhaleStrategist,
		minTrades: 25,
		match: func(_ map[domain.ScoreName]int, f features, d diversification, cfg Config) (int, bool) {
			conc := d.concentration()
			ok := f.sizingConsistency >= 60 && conc >= 70 && f.medianEntryUSD >= cfg.WhaleEntryUSD
			return clampScore((float64(f.sizingConsistency) + conc) / 2), ok
		},
	},
	{
		archetype: domain.ArchetypeSwingTrader,
		minTrades: 15,
		match: func(s map[domain.ScoreName]int, f features, _ diversification, _ Config) (int, bool) {
			p := s[domain.ScorePatience]
			return 100 - 2*abs(p-52), !f.highFrequency && p >= 35 && p <= 70
		},
	},
}

// archetype picks the strongest matching rule the sample can support.
// Ties prefer the rule requiring the larger sample, then the label name.
// Balanced Investor is the fallback.
func (e *Engine) archetype(s map[domain.ScoreName]int, f features, d diversification, n int) domain.Archetype {
	type candidate struct {
		archetype domain.Archetype
		minTrades int
		strength  int
	}
	var matched []candidate
	for _, r := range rules {
		if n < r.minTrades {
			continue
		}
		if strength, ok := r.match(s, f, d, e.cfg); ok {
			matched = append(matched, candidate{r.archetype, r.minTrades, strength})
		}
	}
	if len(matched) == 0 {
		return domain.ArchetypeBalancedInvestor
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.strength != b.strength {
			return a.strength > b.strength
		}
		if a.minTrades != b.minTrades {
			return a.minTrades > b.minTrades
		}
		return a.archetype < b.archetype
	})
	return matched[0].archetype
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
