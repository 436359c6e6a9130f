// Package placeholder synthesizes stand-in data shown when every provider
// is unavailable. Everything it returns is flagged Estimated.
package placeholder

import (
	"math/rand/v2"
	"time"

	"pricetracker/pkg/market"
)

const Source = "placeholder"

// Last known good values shown when no provider answers.
var lastKnownGood = market.CurrentPriceSnapshot{
	Price:            80000,
	Change24hPercent: 1.5,
	High24h:          81500,
	Low24h:           79000,
}

type Options struct {
	BasePrice float64
	MinPrice  float64
	MaxPrice  float64
	Days      int
}

func DefaultOptions() Options {
	return Options{BasePrice: 80000, MinPrice: 60000, MaxPrice: 100000, Days: 180}
}

// Generator builds placeholder snapshots and series.
type Generator struct {
	opts Options
	rng  *rand.Rand
	now  func() time.Time
}

func New(opts Options) *Generator {
	def := DefaultOptions()
	if opts.BasePrice <= 0 {
		opts.BasePrice = def.BasePrice
	}
	if opts.MinPrice <= 0 || opts.MaxPrice <= opts.MinPrice {
		opts.MinPrice, opts.MaxPrice = def.MinPrice, def.MaxPrice
	}
	if opts.Days <= 0 {
		opts.Days = def.Days
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:  time.Now,
	}
}

// Seeded returns a generator with a fixed seed and clock.
func Seeded(opts Options, seed uint64, now func() time.Time) *Generator {
	g := New(opts)
	g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g.now = now
	return g
}

// Current returns the fixed last-known-good snapshot.
func (g *Generator) Current() market.CurrentPriceSnapshot {
	snap := lastKnownGood
	snap.FetchedAt = g.now().UTC()
	snap.Source = Source
	snap.Estimated = true
	return snap
}

// Historical returns Days daily points ending today. Each close is the
// previous one times a factor in [0.98, 1.02], clamped to [MinPrice, MaxPrice].
// Not safe for concurrent use; the tracker calls it under singleflight.
func (g *Generator) Historical() market.HistoricalSeries {
	now := g.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	points := make([]market.PricePoint, 0, g.opts.Days)
	price := clamp(g.opts.BasePrice, g.opts.MinPrice, g.opts.MaxPrice)
	for i := g.opts.Days - 1; i >= 0; i-- {
		open := price
		price = clamp(price*(0.98+g.rng.Float64()*0.04), g.opts.MinPrice, g.opts.MaxPrice)
		points = append(points, market.PricePoint{
			Timestamp: today.AddDate(0, 0, -i).UnixMilli(),
			Price:     price,
			Open:      open,
			High:      max(open, price),
			Low:       min(open, price),
			Volume:    20e9 + g.rng.Float64()*10e9,
		})
	}

	return market.HistoricalSeries{
		Points:    points,
		Source:    Source,
		FetchedAt: now,
		Estimated: true,
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
