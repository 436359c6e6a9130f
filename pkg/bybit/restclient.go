package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"pricetracker/pkg/httpx"
	"pricetracker/pkg/market"
)

const (
	providerName   = "bybit"
	DefaultBaseURL = "https://api.bybit.com"
)

type RESTClient struct {
	baseURL    string
	httpClient httpx.Doer
}

func NewRESTClient(baseURL string, doer httpx.Doer) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// Ticker is the subset of the v5 ticker this tracker consumes, already parsed.
type Ticker struct {
	LastPrice    float64
	PrevPrice24h float64
	HighPrice24h float64
	LowPrice24h  float64
}

// GetTicker fetches the 24h rolling ticker of a single symbol.
func (c *RESTClient) GetTicker(ctx context.Context, category, symbol string) (*Ticker, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	var result TickersResponse
	if err := c.get(ctx, "/v5/market/tickers", q, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, market.Malformed(providerName, "empty ticker list for %s", symbol)
	}

	raw := result.List[0]
	var t Ticker
	var err error
	if t.LastPrice, err = parseFloatField("lastPrice", raw.LastPrice); err != nil {
		return nil, market.Malformed(providerName, "%v", err)
	}
	if t.PrevPrice24h, err = parseFloatField("prevPrice24h", raw.PrevPrice24h); err != nil {
		return nil, market.Malformed(providerName, "%v", err)
	}
	if t.HighPrice24h, err = parseFloatField("highPrice24h", raw.HighPrice24h); err != nil {
		return nil, market.Malformed(providerName, "%v", err)
	}
	if t.LowPrice24h, err = parseFloatField("lowPrice24h", raw.LowPrice24h); err != nil {
		return nil, market.Malformed(providerName, "%v", err)
	}
	return &t, nil
}

// GetKlines fetches candles between start and end, returned oldest first.
func (c *RESTClient) GetKlines(ctx context.Context, category, symbol string, interval KlineInterval,
	start, end time.Time) ([]market.PricePoint, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("invalid KlineInterval: %s", interval)
	}

	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)
	q.Set("interval", string(interval))
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(maxKlineLimit))

	var result KlinesResponse
	if err := c.get(ctx, "/v5/market/kline", q, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, market.Malformed(providerName, "empty kline list for %s", symbol)
	}

	klines, err := ParseKlineList(result.List)
	if err != nil {
		return nil, market.Malformed(providerName, "parse klines: %v", err)
	}
	return klines, nil
}

// get unwraps the v5 envelope and decodes its result into out.
func (c *RESTClient) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	var rawResp BybitResponse
	if err := httpx.GetJSON(ctx, c.httpClient, providerName, endpoint, nil, &rawResp); err != nil {
		return err
	}
	if rawResp.RetCode != 0 {
		return market.NewFetchError(providerName, market.ErrNetwork,
			fmt.Errorf("bybit error %d: %s", rawResp.RetCode, rawResp.RetMsg))
	}
	if len(rawResp.Result) == 0 {
		return market.Malformed(providerName, "missing result")
	}

	// Decode result into the endpoint specific payload
	if err := json.Unmarshal(rawResp.Result, out); err != nil {
		return market.Malformed(providerName, "decode result: %v", err)
	}
	return nil
}
