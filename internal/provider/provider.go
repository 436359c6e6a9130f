// Package provider holds the adapter contract shared by every market data
// source and the decorators the tracker wraps around them.
package provider

import (
	"context"
	"errors"
	"time"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

// CurrentFetcher returns the latest spot snapshot of the tracked asset.
type CurrentFetcher interface {
	Name() string
	FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error)
}

// HistoricalFetcher returns the daily series between start and end.
type HistoricalFetcher interface {
	Name() string
	FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error)
}

// Provider is an adapter serving both chains.
type Provider interface {
	CurrentFetcher
	HistoricalFetcher
}

// asFetchError makes sure every failure leaving a decorator carries a kind.
func asFetchError(ctx context.Context, name string, err error) error {
	var fe *market.FetchError
	if err == nil || errors.As(err, &fe) {
		return err
	}
	return httpx.Classify(ctx, name, err)
}
