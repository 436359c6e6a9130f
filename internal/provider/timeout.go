package provider

import (
	"context"
	"fmt"
	"time"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

const (
	DefaultCurrentTimeout    = 5 * time.Second
	DefaultHistoricalTimeout = 10 * time.Second
)

// Timed bounds each call of the wrapped provider. The call runs in its own
// goroutine and races the deadline; a result arriving after the deadline is
// dropped into a buffered channel and never observed.
type Timed struct {
	P                 Provider
	CurrentTimeout    time.Duration
	HistoricalTimeout time.Duration
}

func WithTimeout(p Provider, current, historical time.Duration) *Timed {
	if current <= 0 {
		current = DefaultCurrentTimeout
	}
	if historical <= 0 {
		historical = DefaultHistoricalTimeout
	}
	return &Timed{P: p, CurrentTimeout: current, HistoricalTimeout: historical}
}

func (t *Timed) Name() string { return t.P.Name() }

func (t *Timed) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	return race(ctx, t.P.Name(), t.CurrentTimeout, t.P.FetchCurrent)
}

func (t *Timed) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	return race(ctx, t.P.Name(), t.HistoricalTimeout, func(ctx context.Context) (market.HistoricalSeries, error) {
		return t.P.FetchHistorical(ctx, start, end)
	})
}

func race[T any](ctx context.Context, name string, d time.Duration, call func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, asFetchError(ctx, name, r.err)
	case <-ctx.Done():
		var zero T
		return zero, httpx.Classify(ctx, name, fmt.Errorf("no response within %s: %w", d, ctx.Err()))
	}
}
