package market

import "math"

// ChangePercent returns (current - previous) / previous * 100. ok is false
// when previous is zero or either input is not a finite number.
func ChangePercent(current, previous float64) (pct float64, ok bool) {
	if previous == 0 || !Finite(current) || !Finite(previous) {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}

// Finite reports whether f is neither NaN nor an infinity.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
