package scoring

import "math"

const minSizingSamples = 3

// sizingConsistency maps the coefficient of variation of entry sizes to
// 0-100; identical sizes score 100, a CV of 2 or more scores 0.
func sizingConsistency(sizes []float64) int {
	if len(sizes) < minSizingSamples {
		return neutral
	}
	var sum float64
	for _, s := range sizes {
		sum += s
	}
	mean := sum / float64(len(sizes))
	if mean <= 0 {
		return neutral
	}
	var sq float64
	for _, s := range sizes {
		d := s - mean
		sq += d * d
	}
	cv := math.Sqrt(sq/float64(len(sizes))) / mean
	return clampScore(100 * (1 - cv/2))
}
