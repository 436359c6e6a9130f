package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pricetracker/internal/cache"
	"pricetracker/internal/placeholder"
	"pricetracker/internal/provider"
	"pricetracker/internal/provider/providertest"
	"pricetracker/pkg/market"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	tracker *Tracker
	clock   *clock
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, providers ...*providertest.Fake) fixture {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	core, logs := observer.New(zapcore.DebugLevel)

	var current []provider.CurrentFetcher
	var historical []provider.HistoricalFetcher
	for _, p := range providers {
		current = append(current, p)
		historical = append(historical, p)
	}

	store := cache.NewStore(cache.NewMemory()).WithClock(c.Now)
	gen := placeholder.Seeded(placeholder.DefaultOptions(), 1, c.Now)
	tr := New(zap.New(core), store, current, historical, gen, DefaultOptions())
	return fixture{tracker: tr, clock: c, logs: logs}
}

func series(source string, prices ...float64) market.HistoricalSeries {
	s := market.HistoricalSeries{Source: source}
	for i, p := range prices {
		s.Points = append(s.Points, market.PricePoint{Timestamp: int64(i+1) * 86_400_000, Price: p})
	}
	return s
}

func TestFailoverUsesSecondProvider(t *testing.T) {
	first := &providertest.Fake{ID: "coingecko", CurrentErr: market.NewFetchError("coingecko", market.ErrNetwork, errors.New("502"))}
	second := &providertest.Fake{ID: "binance", Current: market.CurrentPriceSnapshot{Price: 81234, Change24hPercent: 0.5}}
	third := &providertest.Fake{ID: "bybit", Current: market.CurrentPriceSnapshot{Price: 1}}
	f := newFixture(t, first, second, third)

	snap := f.tracker.ResolveCurrentPrice(context.Background())

	assert.Equal(t, market.CurrentPriceSnapshot{Price: 81234, Change24hPercent: 0.5, Source: "binance"}, snap)
	assert.Equal(t, 1, first.CurrentCalls())
	assert.Equal(t, 1, second.CurrentCalls())
	assert.Equal(t, 0, third.CurrentCalls())

	failed := f.logs.FilterMessage("provider failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "coingecko", fields["provider"])
	assert.Equal(t, "network_error", fields["kind"])
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)

	got, ok := f.tracker.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snap, got)
	assert.NoError(t, f.tracker.LastError("current"))
}

func TestFailoverLogsTimeoutKind(t *testing.T) {
	slow := &providertest.Fake{ID: "slow", Delay: time.Second}
	fast := &providertest.Fake{ID: "fast", Historical: series("", 1, 2)}
	f := newFixture(t)
	f.tracker.historical = []provider.HistoricalFetcher{
		provider.WithTimeout(slow, 10*time.Millisecond, 10*time.Millisecond),
		fast,
	}

	got := f.tracker.ResolveHistorical(context.Background())
	assert.Equal(t, "fast", got.Source)

	failed := f.logs.FilterMessage("provider failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "timeout", failed[0].ContextMap()["kind"])
}

func TestCacheFreshnessSkipsNetwork(t *testing.T) {
	p := &providertest.Fake{ID: "binance", Current: market.CurrentPriceSnapshot{Price: 100}}
	f := newFixture(t, p)
	ctx := context.Background()

	f.tracker.ResolveCurrentPrice(ctx)
	require.Equal(t, 1, p.CurrentCalls())

	f.clock.Advance(4*time.Minute + 59*time.Second)
	snap := f.tracker.ResolveCurrentPrice(ctx)
	assert.Equal(t, 1, p.CurrentCalls(), "fresh entry must not hit the network")
	assert.Equal(t, 100.0, snap.Price)

	p.Current.Price = 200
	f.clock.Advance(time.Second)
	snap = f.tracker.ResolveCurrentPrice(ctx)
	assert.Equal(t, 2, p.CurrentCalls(), "entry at its TTL has expired")
	assert.Equal(t, 200.0, snap.Price)
}

func TestHistoricalCacheTTL(t *testing.T) {
	p := &providertest.Fake{ID: "coingecko", Historical: series("", 10, 20, 30)}
	f := newFixture(t, p)
	ctx := context.Background()

	f.tracker.ResolveHistorical(ctx)
	f.clock.Advance(23 * time.Hour)
	f.tracker.ResolveHistorical(ctx)
	assert.Equal(t, 1, p.HistoricalCalls())

	f.clock.Advance(time.Hour)
	f.tracker.ResolveHistorical(ctx)
	assert.Equal(t, 2, p.HistoricalCalls())
}

func TestAllProvidersFailReturnsPlaceholder(t *testing.T) {
	a := &providertest.Fake{ID: "a", CurrentErr: market.Malformed("a", "missing price"), HistoricalErr: errors.New("boom")}
	b := &providertest.Fake{ID: "b", CurrentErr: errors.New("dial tcp"), HistoricalErr: market.NewFetchError("b", market.ErrTimeout, nil)}
	f := newFixture(t, a, b)
	ctx := context.Background()

	snap := f.tracker.ResolveCurrentPrice(ctx)
	assert.True(t, snap.Estimated)
	assert.Equal(t, placeholder.Source, snap.Source)
	assert.Equal(t, 80000.0, snap.Price)

	hist := f.tracker.ResolveHistorical(ctx)
	assert.True(t, hist.Estimated)
	assert.Len(t, hist.Points, 180)

	assert.ErrorIs(t, f.tracker.LastError("current"), market.ErrNoProvidersAvailable)
	assert.ErrorIs(t, f.tracker.LastError("historical"), market.ErrNoProvidersAvailable)
	assert.Len(t, f.logs.FilterMessage("provider failed").All(), 4)
	assert.Len(t, f.logs.FilterMessage("serving placeholder price").All(), 1)

	// placeholder data is never cached, so the next resolve retries the chain
	f.tracker.ResolveCurrentPrice(ctx)
	assert.Equal(t, 2, a.CurrentCalls())
}

func TestEmptySeriesFallsThrough(t *testing.T) {
	empty := &providertest.Fake{ID: "empty", Historical: market.HistoricalSeries{}}
	good := &providertest.Fake{ID: "good", Historical: series("", 5)}
	f := newFixture(t, empty, good)

	got := f.tracker.ResolveHistorical(context.Background())
	assert.Equal(t, "good", got.Source)
	failed := f.logs.FilterMessage("provider failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "malformed_response", failed[0].ContextMap()["kind"])
}

func TestConcurrentResolvesAreCoalesced(t *testing.T) {
	p := &providertest.Fake{ID: "slow", Current: market.CurrentPriceSnapshot{Price: 7}, Delay: 50 * time.Millisecond}
	f := newFixture(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := f.tracker.ResolveCurrentPrice(context.Background())
			assert.Equal(t, 7.0, snap.Price)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.CurrentCalls(), 2)
	got, ok := f.tracker.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 7.0, got.Price)
}

func TestSnapshotBeforeResolve(t *testing.T) {
	f := newFixture(t)
	_, ok := f.tracker.Snapshot()
	assert.False(t, ok)
	_, ok = f.tracker.Series()
	assert.False(t, ok)
}

func TestEmptyChainFallsBackToPlaceholder(t *testing.T) {
	f := newFixture(t)
	snap := f.tracker.ResolveCurrentPrice(context.Background())
	assert.True(t, snap.Estimated)
	assert.ErrorIs(t, f.tracker.LastError("current"), market.ErrNoProvidersAvailable)
}

func TestSnapshotMatchesCacheAcrossFlights(t *testing.T) {
	p := &providertest.Fake{ID: "binance", Current: market.CurrentPriceSnapshot{Price: 1}, Delay: 30 * time.Millisecond}
	f := newFixture(t, p)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.tracker.ResolveCurrentPrice(ctx)
	}()
	require.Eventually(t, func() bool { return p.CurrentCalls() == 1 }, time.Second, time.Millisecond)

	// joins the flight already running
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.tracker.ResolveCurrentPrice(ctx)
	}()
	wg.Wait()

	p.Current.Price = 2
	f.clock.Advance(5 * time.Minute)
	snap := f.tracker.ResolveCurrentPrice(ctx)
	assert.Equal(t, 2.0, snap.Price)

	cached, fresh, err := cache.LoadFresh[market.CurrentPriceSnapshot](ctx, f.tracker.store, market.KeyCurrentPrice)
	require.NoError(t, err)
	require.True(t, fresh)

	got, ok := f.tracker.Snapshot()
	require.True(t, ok)
	assert.Equal(t, cached.Value.Price, got.Price)
	assert.Equal(t, cached.Value.Source, got.Source)
}

func TestOlderFlightNeverOverwritesNewer(t *testing.T) {
	f := newFixture(t)

	f.tracker.commitSnapshot(2, market.CurrentPriceSnapshot{Price: 2})
	f.tracker.commitSnapshot(1, market.CurrentPriceSnapshot{Price: 1})
	got, _ := f.tracker.Snapshot()
	assert.Equal(t, 2.0, got.Price)

	f.tracker.commitSeries(5, series("binance", 5))
	f.tracker.commitSeries(4, series("coingecko", 4))
	s, _ := f.tracker.Series()
	assert.Equal(t, "binance", s.Source)
}

func TestInvalidateForcesProviderCall(t *testing.T) {
	p := &providertest.Fake{ID: "binance", Current: market.CurrentPriceSnapshot{Price: 100}, Historical: series("", 1, 2)}
	f := newFixture(t, p)
	ctx := context.Background()

	f.tracker.ResolveCurrentPrice(ctx)
	f.tracker.ResolveHistorical(ctx)
	require.NoError(t, f.tracker.Invalidate(ctx))

	_, ok := f.tracker.Snapshot()
	assert.True(t, ok, "invalidation keeps the last snapshot")

	p.Current.Price = 150
	snap := f.tracker.ResolveCurrentPrice(ctx)
	f.tracker.ResolveHistorical(ctx)
	assert.Equal(t, 150.0, snap.Price)
	assert.Equal(t, 2, p.CurrentCalls())
	assert.Equal(t, 2, p.HistoricalCalls())
}
