package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetracker/internal/stats"
	"pricetracker/pkg/market"
)

func day(d int) int64 {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

type recorder struct {
	snaps  []market.CurrentPriceSnapshot
	series []market.HistoricalSeries
}

func (r *recorder) RenderSnapshot(s market.CurrentPriceSnapshot) { r.snaps = append(r.snaps, s) }
func (r *recorder) RenderSeries(s market.HistoricalSeries)       { r.series = append(r.series, s) }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.RenderSnapshot(market.CurrentPriceSnapshot{Price: 1})
	m.RenderSeries(market.HistoricalSeries{Source: "x"})

	assert.Len(t, a.snaps, 1)
	assert.Len(t, b.snaps, 1)
	assert.Len(t, a.series, 1)
	assert.Equal(t, "x", b.series[0].Source)
}

func TestDashboardSnapshot(t *testing.T) {
	d := NewDashboard(stats.TableOptions{}, time.UTC)
	d.RenderSnapshot(market.CurrentPriceSnapshot{
		Price:            80000,
		Change24hPercent: 1.5,
		High24h:          81500,
		Low24h:           79000,
		FetchedAt:        time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC),
		Source:           "placeholder",
		Estimated:        true,
	})

	v := d.View()
	assert.Equal(t, "$80,000.00", v.Price)
	assert.Equal(t, "+1.50%", v.Change)
	assert.Equal(t, stats.Up, v.Direction)
	assert.Equal(t, "$81,500.00", v.High24h)
	assert.Equal(t, "$79,000.00", v.Low24h)
	assert.Equal(t, "Last updated: Mar 1, 2025, 09:05:00 UTC (Estimated)", v.LastUpdated)
	assert.True(t, v.Estimated)
}

func TestDashboardSeries(t *testing.T) {
	d := NewDashboard(stats.TableOptions{Policy: stats.PolicyWeekly}, time.UTC)
	d.RenderSeries(market.HistoricalSeries{Points: []market.PricePoint{
		{Timestamp: day(6), Price: 100, High: 100, Low: 90, Volume: 1_500_000_000},
		{Timestamp: day(13), Price: 110, High: 110, Low: 80},
	}})

	v := d.View()
	assert.Equal(t, "$110.00", v.High6m)
	assert.Equal(t, "$80.00", v.Low6m)
	assert.Equal(t, []string{"Jan 6", "Jan 13"}, v.Chart.Labels)
	assert.Equal(t, []float64{100, 110}, v.Chart.Prices)
	assert.Equal(t, "Price: $110.00", v.Chart.Tooltips[1])

	require.Len(t, v.Table, 2)
	assert.Equal(t, TableRow{Date: "Jan 13, 2025", Price: "$110.00", Change: "+10.00%", Class: "positive", Volume: "N/A"}, v.Table[0])
	assert.Equal(t, TableRow{Date: "Jan 6, 2025", Price: "$100.00", Change: "N/A", Volume: "$1.50B"}, v.Table[1])
}

func TestDashboardViewIsCopy(t *testing.T) {
	d := NewDashboard(stats.TableOptions{}, nil)
	d.RenderSeries(market.HistoricalSeries{Points: []market.PricePoint{{Timestamp: day(1), Price: 1}}})

	v := d.View()
	v.Table[0].Price = "changed"
	v.Chart.Prices[0] = 99
	assert.Equal(t, "$1.00", d.View().Table[0].Price)
	assert.Equal(t, 1.0, d.View().Chart.Prices[0])
}

func TestChartPNG(t *testing.T) {
	var points []market.PricePoint
	for i := 1; i <= 30; i++ {
		points = append(points, market.PricePoint{Timestamp: day(i), Price: 80000 + float64(i*100)})
	}

	img, err := ChartPNG("BTC/USD", market.HistoricalSeries{Points: points, Source: "coingecko"}, 600, 300, time.UTC)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")), "expected a PNG header")

	_, err = ChartPNG("BTC/USD", market.HistoricalSeries{Points: points[:1]}, 600, 300, time.UTC)
	assert.ErrorIs(t, err, errNotEnoughPoints)
}

func TestChartImageKeepsLastGood(t *testing.T) {
	c := &ChartImage{Title: "BTC", Width: 400, Height: 200}
	assert.Nil(t, c.PNG())

	c.RenderSeries(market.HistoricalSeries{Points: []market.PricePoint{{Timestamp: day(1), Price: 1}, {Timestamp: day(2), Price: 2}}})
	first := c.PNG()
	require.NotEmpty(t, first)

	c.RenderSeries(market.HistoricalSeries{})
	assert.Equal(t, first, c.PNG())
}
