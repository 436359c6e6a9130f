// Package tracker owns the failover chains, the cache and the latest
// resolved snapshot and series of the tracked asset.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pricetracker/internal/cache"
	"pricetracker/internal/placeholder"
	"pricetracker/internal/provider"
	"pricetracker/pkg/market"
)

type Options struct {
	CurrentTTL    time.Duration
	HistoricalTTL time.Duration
	HistoryDays   int
}

func DefaultOptions() Options {
	return Options{CurrentTTL: 5 * time.Minute, HistoricalTTL: 24 * time.Hour, HistoryDays: 180}
}

// Tracker resolves prices through an ordered provider chain. Resolve calls
// never fail: when every provider errors, placeholder data is returned.
type Tracker struct {
	log         *zap.Logger
	store       *cache.Store
	current     []provider.CurrentFetcher
	historical  []provider.HistoricalFetcher
	placeholder *placeholder.Generator
	opts        Options

	sf  singleflight.Group
	seq atomic.Uint64

	mu          sync.RWMutex
	snapshot    market.CurrentPriceSnapshot
	snapshotSeq uint64
	series      market.HistoricalSeries
	seriesSeq   uint64
	lastErr     map[string]error // chain name -> last terminal failure, nil after a success
}

func New(log *zap.Logger, store *cache.Store, current []provider.CurrentFetcher,
	historical []provider.HistoricalFetcher, gen *placeholder.Generator, opts Options) *Tracker {
	def := DefaultOptions()
	if opts.CurrentTTL <= 0 {
		opts.CurrentTTL = def.CurrentTTL
	}
	if opts.HistoricalTTL <= 0 {
		opts.HistoricalTTL = def.HistoricalTTL
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = def.HistoryDays
	}
	if gen == nil {
		gen = placeholder.New(placeholder.DefaultOptions())
	}
	return &Tracker{
		log:         log.Named("tracker"),
		store:       store,
		current:     current,
		historical:  historical,
		placeholder: gen,
		opts:        opts,
		lastErr:     make(map[string]error),
	}
}

// ResolveCurrentPrice returns a fresh cached snapshot, else the first
// provider success, else the placeholder snapshot. Concurrent callers share
// one flight, and the flight itself commits its result.
func (t *Tracker) ResolveCurrentPrice(ctx context.Context) market.CurrentPriceSnapshot {
	v, _, _ := t.sf.Do(market.KeyCurrentPrice, func() (any, error) {
		seq := t.seq.Add(1)
		snap := t.resolveCurrent(ctx)
		t.commitSnapshot(seq, snap)
		return snap, nil
	})
	return v.(market.CurrentPriceSnapshot)
}

// ResolveHistorical is ResolveCurrentPrice for the daily series.
func (t *Tracker) ResolveHistorical(ctx context.Context) market.HistoricalSeries {
	v, _, _ := t.sf.Do(market.KeyHistoricalData, func() (any, error) {
		seq := t.seq.Add(1)
		series := t.resolveHistorical(ctx)
		t.commitSeries(seq, series)
		return series, nil
	})
	return v.(market.HistoricalSeries)
}

// commitSnapshot stores snap unless a later flight already committed.
func (t *Tracker) commitSnapshot(seq uint64, snap market.CurrentPriceSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq > t.snapshotSeq {
		t.snapshot, t.snapshotSeq = snap, seq
	}
}

func (t *Tracker) commitSeries(seq uint64, series market.HistoricalSeries) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq > t.seriesSeq {
		t.series, t.seriesSeq = series, seq
	}
}

// Invalidate drops both cached entries so the next resolves go to the
// providers. The last resolved snapshot and series are kept.
func (t *Tracker) Invalidate(ctx context.Context) error {
	var errs []error
	for _, key := range []string{market.KeyCurrentPrice, market.KeyHistoricalData} {
		if err := t.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the last resolved snapshot; ok is false before the first resolve.
func (t *Tracker) Snapshot() (market.CurrentPriceSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot, t.snapshotSeq > 0
}

// Series returns the last resolved series; ok is false before the first resolve.
func (t *Tracker) Series() (market.HistoricalSeries, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.series, t.seriesSeq > 0
}

// LastError returns the error that forced the named chain ("current" or
// "historical") onto placeholder data, or nil if its last resolve succeeded.
func (t *Tracker) LastError(chain string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr[chain]
}

func (t *Tracker) resolveCurrent(ctx context.Context) market.CurrentPriceSnapshot {
	if e, ok := t.loadFresh(ctx, market.KeyCurrentPrice); ok {
		return e.(market.CurrentPriceSnapshot)
	}

	snap, err := firstSuccess(ctx, t.log, "current", t.current, func(ctx context.Context, p provider.CurrentFetcher) (market.CurrentPriceSnapshot, error) {
		return p.FetchCurrent(ctx)
	})
	t.setLastErr("current", err)
	if err != nil {
		t.log.Error("serving placeholder price", zap.String("chain", "current"), zap.Error(err))
		return t.placeholder.Current()
	}

	if err := cache.Save(ctx, t.store, market.KeyCurrentPrice, snap, t.opts.CurrentTTL); err != nil {
		t.log.Warn("cache write failed", zap.String("key", market.KeyCurrentPrice), zap.Error(err))
	}
	return snap
}

func (t *Tracker) resolveHistorical(ctx context.Context) market.HistoricalSeries {
	if e, ok := t.loadFresh(ctx, market.KeyHistoricalData); ok {
		return e.(market.HistoricalSeries)
	}

	end := t.store.Now()
	start := end.AddDate(0, 0, -t.opts.HistoryDays)

	series, err := firstSuccess(ctx, t.log, "historical", t.historical, func(ctx context.Context, p provider.HistoricalFetcher) (market.HistoricalSeries, error) {
		s, err := p.FetchHistorical(ctx, start, end)
		if err == nil && len(s.Points) == 0 {
			err = market.Malformed(p.Name(), "empty series")
		}
		return s, err
	})
	t.setLastErr("historical", err)
	if err != nil {
		t.log.Error("serving placeholder series", zap.String("chain", "historical"), zap.Error(err))
		return t.placeholder.Historical()
	}

	if err := cache.Save(ctx, t.store, market.KeyHistoricalData, series, t.opts.HistoricalTTL); err != nil {
		t.log.Warn("cache write failed", zap.String("key", market.KeyHistoricalData), zap.Error(err))
	}
	return series
}

// loadFresh returns the decoded value for key if it has not expired. Backend
// errors are logged and treated as a miss.
func (t *Tracker) loadFresh(ctx context.Context, key string) (any, bool) {
	var (
		v     any
		fresh bool
		err   error
	)
	switch key {
	case market.KeyCurrentPrice:
		var e cache.Entry[market.CurrentPriceSnapshot]
		e, fresh, err = cache.LoadFresh[market.CurrentPriceSnapshot](ctx, t.store, key)
		v = e.Value
	case market.KeyHistoricalData:
		var e cache.Entry[market.HistoricalSeries]
		e, fresh, err = cache.LoadFresh[market.HistoricalSeries](ctx, t.store, key)
		v = e.Value
	}
	if err != nil {
		t.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if fresh {
		t.log.Debug("cache hit", zap.String("key", key))
	}
	return v, fresh
}

func (t *Tracker) setLastErr(chain string, err error) {
	t.mu.Lock()
	t.lastErr[chain] = err
	t.mu.Unlock()
}

// firstSuccess walks providers in order and returns the first success.
// Every failure is logged with the provider and its error kind. When all
// fail the result wraps market.ErrNoProvidersAvailable and each failure.
func firstSuccess[P interface{ Name() string }, T any](ctx context.Context, log *zap.Logger, chain string,
	providers []P, fetch func(context.Context, P) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		started := time.Now()
		v, err := fetch(ctx, p)
		if err == nil {
			log.Info("provider succeeded",
				zap.String("chain", chain),
				zap.String("provider", p.Name()),
				zap.Duration("took", time.Since(started)),
			)
			return v, nil
		}

		log.Warn("provider failed",
			zap.String("chain", chain),
			zap.String("provider", p.Name()),
			zap.String("kind", market.KindOf(err)),
			zap.Error(err),
		)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return zero, fmt.Errorf("%w: chain %q is empty", market.ErrNoProvidersAvailable, chain)
	}
	return zero, fmt.Errorf("%w: %w", market.ErrNoProvidersAvailable, errors.Join(errs...))
}
