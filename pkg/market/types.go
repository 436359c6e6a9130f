package market

import "time"

// Cache keys for the two persisted values.
const (
	KeyCurrentPrice   = "currentPrice"
	KeyHistoricalData = "historicalData"
)

// PricePoint is a single normalized candle. Providers without OHLC data
// fill Open/High/Low with Price, so every field is always populated.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"` // Start of the period (milliseconds since epoch)
	Price     float64 `json:"price"`     // Close price
	Open      float64 `json:"open"`      // Opening price
	High      float64 `json:"high"`      // Highest price during the period
	Low       float64 `json:"low"`       // Lowest price during the period
	Volume    float64 `json:"volume"`    // Traded value in quote currency, 0 when not reported
}

// Time returns the point's timestamp as a UTC time.
func (p PricePoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// CurrentPriceSnapshot is the latest ticker view of the tracked asset.
// It is replaced wholesale on every successful fetch.
type CurrentPriceSnapshot struct {
	Price            float64   `json:"price"`
	Change24hPercent float64   `json:"change_24h_percent"`
	High24h          float64   `json:"high_24h"`
	Low24h           float64   `json:"low_24h"`
	FetchedAt        time.Time `json:"fetched_at"`
	Source           string    `json:"source"`
	Estimated        bool      `json:"estimated"` // true for synthesized placeholder data
}

// HistoricalSeries holds day candles in ascending timestamp order.
type HistoricalSeries struct {
	Points    []PricePoint `json:"points"`
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetched_at"`
	Estimated bool         `json:"estimated"`
}

// Len returns the number of points in the series.
func (s HistoricalSeries) Len() int { return len(s.Points) }

// Latest returns the newest point, if any.
func (s HistoricalSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}
