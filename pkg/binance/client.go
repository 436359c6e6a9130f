// Package binance adapts the Binance spot market endpoints.
package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

const (
	providerName   = "binance"
	DefaultBaseURL = "https://api.binance.com"

	// klineLimit is the largest page /api/v3/klines serves.
	klineLimit = 1000
)

type Ticker24h struct {
	PriceChangePercent string `json:"priceChangePercent"`
	OpenPrice          string `json:"openPrice"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

type Provider struct {
	baseURL    string
	httpClient httpx.Doer
	symbol     string

	now func() time.Time
}

func New(doer httpx.Doer, baseURL, symbol string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{baseURL: baseURL, httpClient: doer, symbol: symbol, now: time.Now}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	q := url.Values{}
	q.Set("symbol", p.symbol)

	var t Ticker24h
	if err := httpx.GetJSON(ctx, p.httpClient, providerName, p.baseURL+"/api/v3/ticker/24hr?"+q.Encode(), nil, &t); err != nil {
		return market.CurrentPriceSnapshot{}, err
	}

	last, err := parseField("lastPrice", t.LastPrice)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	high, err := parseField("highPrice", t.HighPrice)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	low, err := parseField("lowPrice", t.LowPrice)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}

	change, err := parseField("priceChangePercent", t.PriceChangePercent)
	if err != nil {
		open, oerr := parseField("openPrice", t.OpenPrice)
		if oerr != nil {
			return market.CurrentPriceSnapshot{}, err
		}
		var ok bool
		if change, ok = market.ChangePercent(last, open); !ok {
			return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "openPrice is zero")
		}
	}

	return market.CurrentPriceSnapshot{
		Price:            last,
		Change24hPercent: change,
		High24h:          high,
		Low24h:           low,
		FetchedAt:        p.now().UTC(),
		Source:           providerName,
	}, nil
}

// FetchHistorical reads daily klines. Rows are
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...].
func (p *Provider) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	q := url.Values{}
	q.Set("symbol", p.symbol)
	q.Set("interval", "1d")
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(klineLimit))

	var rows [][]any
	if err := httpx.GetJSON(ctx, p.httpClient, providerName, p.baseURL+"/api/v3/klines?"+q.Encode(), nil, &rows); err != nil {
		return market.HistoricalSeries{}, err
	}
	if len(rows) == 0 {
		return market.HistoricalSeries{}, market.Malformed(providerName, "empty kline list for %s", p.symbol)
	}

	points := make([]market.PricePoint, 0, len(rows))
	for i, row := range rows {
		pt, err := parseKline(row)
		if err != nil {
			return market.HistoricalSeries{}, market.Malformed(providerName, "kline %d: %v", i, err)
		}
		points = append(points, pt)
	}
	market.SortAscending(points)

	return market.HistoricalSeries{
		Points:    points,
		Source:    providerName,
		FetchedAt: p.now().UTC(),
	}, nil
}

func parseKline(row []any) (market.PricePoint, error) {
	if len(row) < 8 {
		return market.PricePoint{}, fmt.Errorf("want at least 8 fields, got %d", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return market.PricePoint{}, fmt.Errorf("open time is %T", row[0])
	}

	var vals [4]float64
	for j := range vals {
		s, ok := row[j+1].(string)
		if !ok {
			return market.PricePoint{}, fmt.Errorf("field %d is %T", j+1, row[j+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("field %d: %w", j+1, err)
		}
		vals[j] = v
	}

	// quote asset volume is optional for our purposes
	var volume float64
	if s, ok := row[7].(string); ok {
		volume, _ = strconv.ParseFloat(s, 64)
	}

	return market.PricePoint{
		Timestamp: market.EpochMillis(int64(openTime)),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Price:     vals[3],
		Volume:    volume,
	}, nil
}

func parseField(name, v string) (float64, error) {
	if v == "" {
		return 0, market.Malformed(providerName, "missing %s", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, market.Malformed(providerName, "%s: %v", name, err)
	}
	return f, nil
}
