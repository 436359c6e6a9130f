package main

import (
	"fmt"
	"strings"

	"pricetracker/config"
	"pricetracker/internal/provider"
	"pricetracker/pkg/binance"
	"pricetracker/pkg/bybit"
	"pricetracker/pkg/coingecko"
	"pricetracker/pkg/cryptocompare"
	"pricetracker/pkg/httpx"
)

// buildProviders constructs every known adapter once, wrapped with its rate
// limit and the per-call timeouts, keyed by its config name.
func buildProviders(cfg *config.Config, doer httpx.Doer) map[string]provider.Provider {
	pc := cfg.Providers
	asset := cfg.Asset

	raw := map[string]struct {
		p   provider.Provider
		cfg config.ProviderConfig
	}{
		"coingecko": {coingecko.New(doer, asset.CoinGeckoID,
			coingecko.WithBaseURL(pc.CoinGecko.BaseURL),
			coingecko.WithAPIKey(pc.CoinGecko.APIKey),
			coingecko.WithVsCurrency(strings.ToLower(asset.Quote)),
		), pc.CoinGecko},
		"binance": {binance.New(doer, pc.Binance.BaseURL, asset.Symbol), pc.Binance},
		"bybit": {bybit.NewProvider(bybit.NewRESTClient(pc.Bybit.BaseURL, doer),
			pc.Bybit.Category, asset.Symbol), pc.Bybit},
		"cryptocompare": {cryptocompare.New(doer, pc.CryptoCompare.BaseURL,
			asset.Base, asset.Quote, pc.CryptoCompare.APIKey), pc.CryptoCompare},
	}

	out := make(map[string]provider.Provider, len(raw))
	for name, r := range raw {
		out[name] = provider.Wrap(r.p, r.cfg.RatePerMinute, r.cfg.Burst, pc.CurrentTimeout, pc.HistoricalTimeout)
	}
	return out
}

// chains orders the adapters as configured. Config validation guarantees
// every name is known.
func chains(cfg *config.Config, all map[string]provider.Provider) ([]provider.CurrentFetcher, []provider.HistoricalFetcher, error) {
	var current []provider.CurrentFetcher
	for _, name := range cfg.Providers.CurrentOrder {
		p, ok := all[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown provider %q", name)
		}
		current = append(current, p)
	}
	var historical []provider.HistoricalFetcher
	for _, name := range cfg.Providers.HistoricalOrder {
		p, ok := all[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown provider %q", name)
		}
		historical = append(historical, p)
	}
	return current, historical, nil
}
