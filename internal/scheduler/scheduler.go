// Package scheduler drives the two refresh loops.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pricetracker/internal/render"
	"pricetracker/pkg/market"
)

// Resolver is the part of the tracker the scheduler calls.
type Resolver interface {
	ResolveCurrentPrice(ctx context.Context) market.CurrentPriceSnapshot
	ResolveHistorical(ctx context.Context) market.HistoricalSeries
}

type Config struct {
	CurrentInterval    time.Duration // e.g. 30*time.Second
	HistoricalInterval time.Duration // e.g. 30*time.Minute
	CycleTimeout       time.Duration // bound on a single refresh
}

type Scheduler struct {
	resolver Resolver
	out      render.Renderer
	cfg      Config
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(resolver Resolver, out render.Renderer, cfg Config, log *zap.Logger) *Scheduler {
	if cfg.CurrentInterval <= 0 {
		cfg.CurrentInterval = 30 * time.Second
	}
	if cfg.HistoricalInterval <= 0 {
		cfg.HistoricalInterval = 30 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = time.Minute
	}
	return &Scheduler{resolver: resolver, out: out, cfg: cfg, log: log.Named("scheduler")}
}

// Start runs each refresh once, then repeats it on its own ticker until ctx
// is done or Stop is called. A failed or panicking cycle never stops its loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	s.wg.Add(2)
	go s.loop(ctx, stop, "current", s.cfg.CurrentInterval, s.RefreshCurrent)
	go s.loop(ctx, stop, "historical", s.cfg.HistoricalInterval, s.RefreshHistorical)

	s.log.Info("started",
		zap.Duration("current_interval", s.cfg.CurrentInterval),
		zap.Duration("historical_interval", s.cfg.HistoricalInterval),
	)
}

// Stop halts both loops and waits for in-flight cycles to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshCurrent resolves and renders the current price once.
func (s *Scheduler) RefreshCurrent(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()
	snap := s.resolver.ResolveCurrentPrice(ctx)
	s.out.RenderSnapshot(snap)
}

// RefreshHistorical resolves and renders the historical series once.
func (s *Scheduler) RefreshHistorical(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()
	series := s.resolver.ResolveHistorical(ctx)
	s.out.RenderSeries(series)
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, name string, every time.Duration, cycle func(context.Context)) {
	defer s.wg.Done()

	// Run immediately once at startup
	s.runOnce(ctx, name, cycle)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce(ctx, name, cycle)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, cycle func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("refresh panicked", zap.String("loop", name), zap.Any("panic", r))
		}
	}()
	cycle(ctx)
}
