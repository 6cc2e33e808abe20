package scoring

import (
	"math"

	"wallet-profiler/internal/domain"
)

// holdSaturationHours is the median hold that earns a full hold score.
const holdSaturationHours = 720

// holdScore grows logarithmically with the median hold time.
func holdScore(medianHours float64) float64 {
	if medianHours < 0 {
		return neutral
	}
	return 100 * clamp01(math.Log1p(medianHours)/math.Log1p(holdSaturationHours))
}

func (e *Engine) scores(f features, d diversification) map[domain.ScoreName]int {
	hold := holdScore(f.medianHoldHours)
	freq := clamp01(f.tradesPerDay / e.cfg.HighFrequencyTradesPerDay)
	conc := d.concentration()

	conviction := clampScore(0.6*hold + 0.4*conc - 40*f.roundTripShare - 20*freq)
	if f.highFrequency {
		conviction = min(conviction, e.cfg.HighFrequencyConvictionCap)
	}

	patience := clampScore(0.7*hold + 0.3*(100-100*freq))
	fomo := clampScore(100 * (0.7*f.spikeRate + 0.3*f.roundTripShare))

	degen := clampScore(100 * (0.5*f.spikeRate + 0.3*f.memecoinShare + 0.2*freq))
	// chasing spikes is degenerate behavior on its own
	degen = max(degen, (fomo+2)/3)

	risk := clampScore(0.4*float64(degen) + 0.3*float64(100-f.sizingConsistency) + 0.3*conc)
	whisperer := clampScore(0.3*float64(conviction) + 0.25*float64(patience) +
		0.25*float64(f.sizingConsistency) + 0.2*float64(100-fomo))

	return map[domain.ScoreName]int{
		domain.ScoreRisk:       risk,
		domain.ScoreFOMO:       fomo,
		domain.ScorePatience:   patience,
		domain.ScoreConviction: conviction,
		domain.ScoreDegen:      degen,
		domain.ScoreWhisperer:  whisperer,
	}
}
