package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"pricetracker/pkg/market"
)

// ErrRateLimited is returned instead of calling a provider whose budget is spent.
var ErrRateLimited = errors.New("local rate limit reached")

// TokenBucket is a token bucket limiter. Allow never blocks: a refresh that
// finds the bucket empty moves on to the next provider instead of waiting.
type TokenBucket struct {
	rate     float64 // tokens per second
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
		now:      time.Now,
	}
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.rate)
		tb.last = now
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// Limited gates both fetch kinds of a provider behind one shared bucket.
type Limited struct {
	P  Provider
	TB *TokenBucket
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	if err := l.take(); err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	return l.P.FetchCurrent(ctx)
}

func (l *Limited) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	if err := l.take(); err != nil {
		return market.HistoricalSeries{}, err
	}
	return l.P.FetchHistorical(ctx, start, end)
}

func (l *Limited) take() error {
	if l.TB == nil || l.TB.Allow() {
		return nil
	}
	return market.NewFetchError(l.P.Name(), market.ErrNetwork, ErrRateLimited)
}

// Wrap applies the optional limiter and the per-call timeouts, outermost first.
func Wrap(p Provider, perMinute float64, burst int, current, historical time.Duration) Provider {
	var inner Provider = p
	if perMinute > 0 {
		inner = &Limited{P: p, TB: NewTokenBucket(perMinute/60, burst)}
	}
	return WithTimeout(inner, current, historical)
}
