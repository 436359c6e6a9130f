// Package providertest offers a scriptable provider for tests.
package providertest

import (
	"context"
	"sync/atomic"
	"time"

	"pricetracker/pkg/market"
)

// Fake answers with the configured values or errors and counts calls.
// Delay, when set, is honored unless ctx ends first.
type Fake struct {
	ID            string
	Current       market.CurrentPriceSnapshot
	CurrentErr    error
	Historical    market.HistoricalSeries
	HistoricalErr error
	Delay         time.Duration

	currentCalls    atomic.Int32
	historicalCalls atomic.Int32
}

func (f *Fake) Name() string { return f.ID }

func (f *Fake) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	f.currentCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	if f.CurrentErr != nil {
		return market.CurrentPriceSnapshot{}, f.CurrentErr
	}
	snap := f.Current
	if snap.Source == "" {
		snap.Source = f.ID
	}
	return snap, nil
}

func (f *Fake) FetchHistorical(ctx context.Context, _, _ time.Time) (market.HistoricalSeries, error) {
	f.historicalCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return market.HistoricalSeries{}, err
	}
	if f.HistoricalErr != nil {
		return market.HistoricalSeries{}, f.HistoricalErr
	}
	series := f.Historical
	if series.Source == "" {
		series.Source = f.ID
	}
	return series, nil
}

func (f *Fake) CurrentCalls() int    { return int(f.currentCalls.Load()) }
func (f *Fake) HistoricalCalls() int { return int(f.historicalCalls.Load()) }

func (f *Fake) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
