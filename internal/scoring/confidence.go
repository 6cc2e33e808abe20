package scoring

import "math"

// confidenceScale controls how fast confidence approaches 1.
const confidenceScale = 35.0

// confidence is non-decreasing in n: 0 at n=0, capped at LowConfidenceCap
// below MinTrades, and exactly 1 from SaturationTrades on.
func (e *Engine) confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	if n >= e.cfg.SaturationTrades {
		return 1
	}
	c := 1 - math.Exp(-float64(n)/confidenceScale)
	if n < e.cfg.MinTrades {
		c = math.Min(c, e.cfg.LowConfidenceCap)
	}
	return round4(c)
}
