package scoring

import (
	"math"
	"sort"
)

const neutral = 50

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return neutral
	}
	r := int(math.Round(v))
	return min(max(r, 0), 100)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// median returns the median of values; values is sorted in place.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
