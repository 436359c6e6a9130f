package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pricetracker/config"
	"pricetracker/internal/api"
	"pricetracker/internal/cache"
	"pricetracker/internal/placeholder"
	"pricetracker/internal/render"
	"pricetracker/internal/scheduler"
	"pricetracker/internal/stats"
	"pricetracker/internal/tracker"
	"pricetracker/logger"
	"pricetracker/pkg/httpx"
)

func main() {
	// viper config
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("tracker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, err := cache.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("cache ready", zap.String("backend", cfg.Cache.Backend))

	// A single client is shared; each call is bounded by the provider timeouts.
	doer := httpx.New(cfg.Providers.HistoricalTimeout + time.Second)
	current, historical, err := chains(cfg, buildProviders(cfg, doer))
	if err != nil {
		return err
	}

	gen := placeholder.New(placeholder.Options{
		BasePrice: cfg.Placeholder.BasePrice,
		MinPrice:  cfg.Placeholder.MinPrice,
		MaxPrice:  cfg.Placeholder.MaxPrice,
		Days:      cfg.Placeholder.Days,
	})
	tr := tracker.New(log, store, current, historical, gen, tracker.Options{
		CurrentTTL:    cfg.Cache.CurrentTTL,
		HistoricalTTL: cfg.Cache.HistoricalTTL,
		HistoryDays:   cfg.Providers.HistoryDays,
	})

	policy, err := stats.ParseTablePolicy(cfg.Table.Policy)
	if err != nil {
		return err
	}
	table := stats.TableOptions{Policy: policy, Weeks: cfg.Table.Weeks, Recent: cfg.Table.Recent}

	dashboard := render.NewDashboard(table, time.Local)
	chart := &render.ChartImage{
		Title:  cfg.Asset.Base + " / " + cfg.Asset.Quote,
		Width:  cfg.Server.ChartWidth,
		Height: cfg.Server.ChartHeight,
		Loc:    time.Local,
		Log:    log,
	}
	hub := api.NewHub(log)

	sched := scheduler.New(tr, render.Multi{dashboard, chart, hub}, scheduler.Config{
		CurrentInterval:    cfg.Refresh.CurrentInterval,
		HistoricalInterval: cfg.Refresh.HistoricalInterval,
	}, log)

	srv := api.NewServer(tr, sched, dashboard, chart, hub, api.Options{
		Addr:         cfg.Server.Addr,
		WriteTimeout: cfg.Server.WriteTimeout,
		Table:        table,
		Location:     time.Local,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("server shutdown", zap.Error(serr))
	}
	return err
}
