// Package stats derives the numbers shown next to the chart: percent
// changes, the six month range and the sampled table rows.
package stats

import (
	"math"

	"pricetracker/pkg/market"
)

// HighLow reduces a series to its highest high and lowest low. Points that
// carry no high or low fall back to their close.
func HighLow(points []market.PricePoint) (high, low float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range points {
		h, l := p.High, p.Low
		if h == 0 {
			h = p.Price
		}
		if l == 0 {
			l = p.Price
		}
		high = math.Max(high, h)
		low = math.Min(low, l)
	}
	return high, low, true
}

// SeriesChange is the change between the first and last point of an
// ascending series.
func SeriesChange(points []market.PricePoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	return market.ChangePercent(points[len(points)-1].Price, points[0].Price)
}
