package bybit

// KlineInterval is the interval type used for API requests
type KlineInterval string

// IntervalDaily is the only candle size the tracker's daily series uses.
const IntervalDaily KlineInterval = "D"

// Category values accepted by the v5 market endpoints
const (
	CategorySpot   = "spot"
	CategoryLinear = "linear"
)

// maxKlineLimit is the largest page the v5 kline endpoint returns.
const maxKlineLimit = 1000

// IsValid checks if the KlineInterval is one this client requests
func (k KlineInterval) IsValid() bool {
	return k == IntervalDaily
}

// ValidCategory reports whether c is a market category the adapter supports.
func ValidCategory(c string) bool {
	return c == CategorySpot || c == CategoryLinear
}
