package domain

import "sort"

// SortTrades orders trades by (timestamp ASC, slot ASC, signature ASC).
// This provides deterministic ordering independent of fetch order.
func SortTrades(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return CompareTrades(&trades[i], &trades[j]) < 0
	})
}

// CompareTrades returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func CompareTrades(a, b *Trade) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Signature != b.Signature {
		if a.Signature < b.Signature {
			return -1
		}
		return 1
	}
	return 0
}
