// Package render is the presentation boundary. The scheduler pushes every
// resolved snapshot and series to a Renderer; implementations turn them into
// whatever the UI consumes.
package render

import "pricetracker/pkg/market"

// Renderer receives resolved data. Series are always ascending.
type Renderer interface {
	RenderSnapshot(snap market.CurrentPriceSnapshot)
	RenderSeries(series market.HistoricalSeries)
}

// Multi fans a render out to every renderer in order.
type Multi []Renderer

func (m Multi) RenderSnapshot(snap market.CurrentPriceSnapshot) {
	for _, r := range m {
		r.RenderSnapshot(snap)
	}
}

func (m Multi) RenderSeries(series market.HistoricalSeries) {
	for _, r := range m {
		r.RenderSeries(series)
	}
}
