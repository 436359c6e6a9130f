package stats

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"pricetracker/pkg/market"
)

const notAvailable = "N/A"

// FormatVolume abbreviates a quote-currency volume: "$1.50B", "$2.50K", "$500".
// Zero means the provider did not report volume.
func FormatVolume(v float64) string {
	switch {
	case v <= 0 || !market.Finite(v):
		return notAvailable
	case v >= 1e9:
		return "$" + fixed2(v/1e9) + "B"
	case v >= 1e6:
		return "$" + fixed2(v/1e6) + "M"
	case v >= 1e3:
		return "$" + fixed2(v/1e3) + "K"
	default:
		return "$" + humanize.Comma(int64(math.Round(v)))
	}
}

// FormatPrice renders a USD price with grouping and two decimals.
func FormatPrice(p float64) string {
	if !market.Finite(p) {
		return notAvailable
	}
	rounded, _ := decimal.NewFromFloat(p).Round(2).Float64()
	return "$" + humanize.FormatFloat("#,###.##", rounded)
}

// FormatChange renders a percent change with an explicit sign on gains.
func FormatChange(pct float64) string {
	if !market.Finite(pct) {
		return notAvailable
	}
	s := fixed2(pct)
	if pct > 0 && s != "0.00" {
		s = "+" + s
	}
	return s + "%"
}

// FormatRowChange is FormatChange for a table row, "N/A" without a baseline.
func FormatRowChange(r Row) string {
	if !r.HasChange {
		return notAvailable
	}
	return FormatChange(r.Change)
}

// Direction classifies a change for arrow rendering.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

func DirectionOf(pct float64) Direction {
	d := decimal.NewFromFloat(pct).Round(2)
	switch d.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

func fixed2(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}
