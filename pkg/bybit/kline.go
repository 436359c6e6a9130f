package bybit

import (
	"fmt"
	"strconv"

	"pricetracker/pkg/market"
)

// ParseKlineList converts Bybit REST API kline rows to ascending price points.
// Bybit returns rows newest first, so the result is reversed. Any row that is
// short or carries an unparsable number fails the whole list.
func ParseKlineList(raw [][]string) ([]market.PricePoint, error) {
	out := make([]market.PricePoint, 0, len(raw))

	for i, row := range raw {
		if len(row) < 7 {
			return nil, fmt.Errorf("row %d: want 7 fields, got %d", i, len(row))
		}

		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d start: %w", i, err)
		}

		var vals [6]float64 // open, high, low, close, volume, turnover
		for j := range vals {
			vals[j], err = strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j+1, err)
			}
		}

		out = append(out, market.PricePoint{
			Timestamp: market.EpochMillis(start),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Price:     vals[3],
			Volume:    vals[5], // turnover is quoted in USDT, matching the other sources
		})
	}

	market.SortAscending(out)
	return out, nil
}

// parseFloatField parses a required numeric string field.
func parseFloatField(name, v string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}
