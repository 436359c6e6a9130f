package market

import "sort"

// secondsCutoff separates epoch seconds from epoch milliseconds. Any value
// below it is far beyond year 2286 in seconds, or before 1970-04-26 in ms.
const secondsCutoff = 10_000_000_000

// EpochMillis normalizes an epoch timestamp that may be in seconds or
// milliseconds to milliseconds.
func EpochMillis(v int64) int64 {
	if v > 0 && v < secondsCutoff {
		return v * 1000
	}
	return v
}

// SortAscending orders points by timestamp, oldest first. Providers that
// deliver newest-first lists are normalized with it.
func SortAscending(points []PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
}
