// Package cryptocompare adapts the CryptoCompare min-api.
package cryptocompare

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

const (
	providerName   = "cryptocompare"
	DefaultBaseURL = "https://min-api.cryptocompare.com"

	// maxHistoLimit is the largest number of candles histoday returns.
	maxHistoLimit = 2000
)

type rawQuote struct {
	Price        *float64 `json:"PRICE"`
	ChangePct24h *float64 `json:"CHANGEPCT24HOUR"`
	Open24h      *float64 `json:"OPEN24HOUR"`
	High24h      *float64 `json:"HIGH24HOUR"`
	Low24h       *float64 `json:"LOW24HOUR"`
}

type priceMultiFull struct {
	Response string                         `json:"Response"`
	Message  string                         `json:"Message"`
	Raw      map[string]map[string]rawQuote `json:"RAW"`
}

// Candle is one histoday entry. Time is in seconds.
type Candle struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	VolumeFrom float64 `json:"volumefrom"`
	VolumeTo   float64 `json:"volumeto"`
}

type histoDay struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []Candle `json:"Data"`
	} `json:"Data"`
}

type Provider struct {
	baseURL    string
	httpClient httpx.Doer
	fsym, tsym string
	apiKey     string

	now func() time.Time
}

// New returns a provider for fsym priced in tsym, e.g. BTC/USD. apiKey may be empty.
func New(doer httpx.Doer, baseURL, fsym, tsym, apiKey string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL:    baseURL,
		httpClient: doer,
		fsym:       fsym,
		tsym:       tsym,
		apiKey:     apiKey,
		now:        time.Now,
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	q := url.Values{}
	q.Set("fsyms", p.fsym)
	q.Set("tsyms", p.tsym)

	var resp priceMultiFull
	if err := p.get(ctx, "/data/pricemultifull", q, &resp); err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	if resp.Response == "Error" {
		return market.CurrentPriceSnapshot{}, market.NewFetchError(providerName, market.ErrNetwork, fmt.Errorf("%s", resp.Message))
	}

	quote, ok := resp.Raw[p.fsym][p.tsym]
	if !ok {
		return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "RAW.%s.%s missing", p.fsym, p.tsym)
	}
	if quote.Price == nil || quote.High24h == nil || quote.Low24h == nil {
		return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "RAW.%s.%s incomplete", p.fsym, p.tsym)
	}

	var change float64
	switch {
	case quote.ChangePct24h != nil:
		change = *quote.ChangePct24h
	case quote.Open24h != nil:
		if change, ok = market.ChangePercent(*quote.Price, *quote.Open24h); !ok {
			return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "OPEN24HOUR is zero")
		}
	default:
		return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "no 24h change or open")
	}

	return market.CurrentPriceSnapshot{
		Price:            *quote.Price,
		Change24hPercent: change,
		High24h:          *quote.High24h,
		Low24h:           *quote.Low24h,
		FetchedAt:        p.now().UTC(),
		Source:           providerName,
	}, nil
}

// FetchHistorical reads daily candles ending at end. histoday takes a count
// rather than a start, so the span is converted to whole days.
func (p *Provider) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	limit := int(math.Ceil(end.Sub(start).Hours() / 24))
	limit = max(1, min(limit, maxHistoLimit))

	q := url.Values{}
	q.Set("fsym", p.fsym)
	q.Set("tsym", p.tsym)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("toTs", strconv.FormatInt(end.Unix(), 10))

	var resp histoDay
	if err := p.get(ctx, "/data/v2/histoday", q, &resp); err != nil {
		return market.HistoricalSeries{}, err
	}
	if resp.Response == "Error" {
		return market.HistoricalSeries{}, market.NewFetchError(providerName, market.ErrNetwork, fmt.Errorf("%s", resp.Message))
	}
	if len(resp.Data.Data) == 0 {
		return market.HistoricalSeries{}, market.Malformed(providerName, "empty Data.Data")
	}

	points := make([]market.PricePoint, 0, len(resp.Data.Data))
	for i, c := range resp.Data.Data {
		if c.Time <= 0 {
			return market.HistoricalSeries{}, market.Malformed(providerName, "candle %d has no time", i)
		}
		points = append(points, market.PricePoint{
			Timestamp: market.EpochMillis(c.Time),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Price:     c.Close,
			Volume:    c.VolumeTo,
		})
	}
	market.SortAscending(points)

	return market.HistoricalSeries{
		Points:    points,
		Source:    providerName,
		FetchedAt: p.now().UTC(),
	}, nil
}

func (p *Provider) get(ctx context.Context, path string, q url.Values, out any) error {
	var header http.Header
	if p.apiKey != "" {
		header = http.Header{"Authorization": []string{"Apikey " + p.apiKey}}
	}
	return httpx.GetJSON(ctx, p.httpClient, providerName, p.baseURL+path+"?"+q.Encode(), header, out)
}
