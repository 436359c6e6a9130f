// Package coingecko reads spot prices and daily history from the CoinGecko
// public API.
package coingecko

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

const (
	providerName   = "coingecko"
	DefaultBaseURL = "https://api.coingecko.com"
	apiKeyHeader   = "x-cg-demo-api-key"
)

// Provider fetches a single coin id priced in VsCurrency.
type Provider struct {
	baseURL    string
	httpClient httpx.Doer
	coinID     string
	vsCurrency string
	apiKey     string

	now func() time.Time
}

type Option func(*Provider)

func WithBaseURL(u string) Option         { return func(p *Provider) { p.baseURL = u } }
func WithAPIKey(k string) Option          { return func(p *Provider) { p.apiKey = k } }
func WithVsCurrency(c string) Option      { return func(p *Provider) { p.vsCurrency = c } }
func withClock(f func() time.Time) Option { return func(p *Provider) { p.now = f } }

func New(doer httpx.Doer, coinID string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    DefaultBaseURL,
		httpClient: doer,
		coinID:     coinID,
		vsCurrency: "usd",
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

// FetchCurrent reads market_data from /coins/{id}.
func (p *Provider) FetchCurrent(ctx context.Context) (market.CurrentPriceSnapshot, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	body, err := p.get(ctx, "/api/v3/coins/"+url.PathEscape(p.coinID), q)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}

	md := gjson.GetBytes(body, "market_data")
	if !md.Exists() {
		return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "missing market_data")
	}

	price, err := number(md, "current_price."+p.vsCurrency)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	high, err := number(md, "high_24h."+p.vsCurrency)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}
	low, err := number(md, "low_24h."+p.vsCurrency)
	if err != nil {
		return market.CurrentPriceSnapshot{}, err
	}

	var change float64
	if c := md.Get("price_change_percentage_24h"); c.Type == gjson.Number {
		change = c.Float()
	} else {
		// derive from the absolute 24h change when the percentage is absent
		delta, err := number(md, "price_change_24h_in_currency."+p.vsCurrency)
		if err != nil {
			return market.CurrentPriceSnapshot{}, err
		}
		var ok bool
		if change, ok = market.ChangePercent(price, price-delta); !ok {
			return market.CurrentPriceSnapshot{}, market.Malformed(providerName, "cannot derive 24h change")
		}
	}

	return market.CurrentPriceSnapshot{
		Price:            price,
		Change24hPercent: change,
		High24h:          high,
		Low24h:           low,
		FetchedAt:        p.now().UTC(),
		Source:           providerName,
	}, nil
}

// FetchHistorical reads /market_chart/range. CoinGecko picks the granularity
// from the span; ranges over 90 days come back daily.
func (p *Provider) FetchHistorical(ctx context.Context, start, end time.Time) (market.HistoricalSeries, error) {
	q := url.Values{}
	q.Set("vs_currency", p.vsCurrency)
	q.Set("from", strconv.FormatInt(start.Unix(), 10))
	q.Set("to", strconv.FormatInt(end.Unix(), 10))

	body, err := p.get(ctx, "/api/v3/coins/"+url.PathEscape(p.coinID)+"/market_chart/range", q)
	if err != nil {
		return market.HistoricalSeries{}, err
	}

	prices := gjson.GetBytes(body, "prices")
	if !prices.IsArray() || len(prices.Array()) == 0 {
		return market.HistoricalSeries{}, market.Malformed(providerName, "missing prices")
	}
	volumes := gjson.GetBytes(body, "total_volumes").Array()

	rows := prices.Array()
	points := make([]market.PricePoint, 0, len(rows))
	for i, row := range rows {
		pair := row.Array()
		if len(pair) < 2 || pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
			return market.HistoricalSeries{}, market.Malformed(providerName, "prices[%d] is not [ts, price]", i)
		}
		price := pair[1].Float()
		pt := market.PricePoint{
			Timestamp: market.EpochMillis(pair[0].Int()),
			Price:     price,
			Open:      price,
			High:      price,
			Low:       price,
		}
		if i < len(volumes) {
			pt.Volume = volumes[i].Get("1").Float()
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

// get returns the raw body so fields can be probed with gjson paths.
func (p *Provider) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := p.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, market.NewFetchError(providerName, market.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set(apiKeyHeader, p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, httpx.Classify(ctx, providerName, fmt.Errorf("GET %s: %w", path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httpx.Classify(ctx, providerName, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, market.NewFetchError(providerName, market.ErrNetwork,
			fmt.Errorf("GET %s -> %d", path, resp.StatusCode))
	}
	if !gjson.ValidBytes(body) {
		return nil, market.Malformed(providerName, "invalid json from %s", path)
	}
	return body, nil
}

func number(r gjson.Result, path string) (float64, error) {
	v := r.Get(path)
	if v.Type != gjson.Number {
		return 0, market.Malformed(providerName, "missing or non-numeric %s", path)
	}
	return v.Float(), nil
}
