package bybit

import (
	"context"
	"time"

	"pricetracker/pkg/market"
)

// Provider adapts the Bybit market endpoints to the tracker's common schema.
type Provider struct {
	Client   *RESTClient
	Category string // "spot" unless configured otherwise
	Symbol   string // e.g. "BTCUSDT"
	Interval KlineInterval

	now func() time.Time
}

func NewProvider(client *RESTClient, category, symbol string) *Provider {
	if category == "" {
		category = CategorySpot
	}
	return &Provider{
		Client:   client,
		Category: category,
		Symbol:   symbol,
		Interval: IntervalDaily,
		now:      time.Now,
	}
}

func (p *Provider) Name() string { return providerName }

// FetchCurrent maps the rolling ticker onto a snapshot. Bybit reports the
// change as a fraction, so it is recomputed from the 24h reference price.
func (p *Provider) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	t, err := p.Client.GetTicker(ctx, p.Category, p.Symbol)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	change, ok := market.ChangePercent(t.LastPrice, t.PrevPrice24h)
	if !ok {
		return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "prevPrice24h is zero")
	}
	return market.CurrentPriceSnapshot{
		Price:            t.LastPrice,
		Change24hPercent: change,
		High24h:          t.HighPrice24h,
		Low24h:           t.LowPrice24h,
		FetchedAt:        p.now().UTC(),
		Source:           providerName,
	}, nil
}

func (p *Provider) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	points, err := p.Client.GetKlines(ctx, p.Category, p.Symbol, p.Interval, start, end)
	if err != nil {
		return market.HistoricalSeries{}, err
	}
	return market.HistoricalSeries{
		Points:    points,
		Source:    providerName,
		FetchedAt: p.now().UTC(),
	}, nil
}
