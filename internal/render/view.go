package render

import (
	"sync"
	"time"

	"pricetracker/internal/stats"
	"pricetracker/pkg/market"
)

const (
	chartLabelLayout = "Jan 2"
	tableDateLayout  = "Jan 2, 2006"
	updatedLayout    = "Jan 2, 2006, 15:04:05 MST"
)

// View is everything the page shows, already formatted.
type View struct {
	Price       string          `json:"price"`
	Change      string          `json:"change"`
	Direction   stats.Direction `json:"direction"`
	High24h     string          `json:"high_24h"`
	Low24h      string          `json:"low_24h"`
	High6m      string          `json:"high_6m"`
	Low6m       string          `json:"low_6m"`
	LastUpdated string          `json:"last_updated"`
	Source      string          `json:"source"`
	Estimated   bool            `json:"estimated"`

	Chart ChartData  `json:"chart"`
	Table []TableRow `json:"table"`
}

// ChartData is one label, value and tooltip per point, oldest first.
type ChartData struct {
	Labels    []string  `json:"labels"`
	Prices    []float64 `json:"prices"`
	Tooltips  []string  `json:"tooltips"`
	Estimated bool      `json:"estimated"`
}

type TableRow struct {
	Date   string `json:"date"`
	Price  string `json:"price"`
	Change string `json:"change"`
	Class  string `json:"class"` // "positive", "negative" or "" without a baseline
	Volume string `json:"volume"`
}

// Dashboard keeps the latest View. It is safe for concurrent use.
type Dashboard struct {
	table    stats.TableOptions
	location *time.Location

	mu   sync.RWMutex
	view View
}

func NewDashboard(table stats.TableOptions, loc *time.Location) *Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	return &Dashboard{table: table, location: loc}
}

func (d *Dashboard) RenderSnapshot(snap market.CurrentPriceSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.view.Price = stats.FormatPrice(snap.Price)
	d.view.Change = stats.FormatChange(snap.Change24hPercent)
	d.view.Direction = stats.DirectionOf(snap.Change24hPercent)
	d.view.High24h = stats.FormatPrice(snap.High24h)
	d.view.Low24h = stats.FormatPrice(snap.Low24h)
	d.view.Source = snap.Source
	d.view.Estimated = snap.Estimated
	d.view.LastUpdated = LastUpdated(snap.FetchedAt.In(d.location), snap.Estimated)
}

func (d *Dashboard) RenderSeries(series market.HistoricalSeries) {
	chart := BuildChart(series, d.location)
	rows := BuildTable(series, d.table, d.location)

	var high, low string
	if h, l, ok := stats.HighLow(series.Points); ok {
		high, low = stats.FormatPrice(h), stats.FormatPrice(l)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Chart = chart
	d.view.Table = rows
	d.view.High6m = high
	d.view.Low6m = low
}

// View returns a copy of the current view.
func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v := d.view
	v.Table = append([]TableRow(nil), d.view.Table...)
	v.Chart.Labels = append([]string(nil), d.view.Chart.Labels...)
	v.Chart.Prices = append([]float64(nil), d.view.Chart.Prices...)
	v.Chart.Tooltips = append([]string(nil), d.view.Chart.Tooltips...)
	return v
}

// LastUpdated formats the freshness line under the price.
func LastUpdated(t time.Time, estimated bool) string {
	s := "Last updated: " + t.Format(updatedLayout)
	if estimated {
		s += " (Estimated)"
	}
	return s
}

func BuildChart(series market.HistoricalSeries, loc *time.Location) ChartData {
	c := ChartData{
		Labels:    make([]string, len(series.Points)),
		Prices:    make([]float64, len(series.Points)),
		Tooltips:  make([]string, len(series.Points)),
		Estimated: series.Estimated,
	}
	for i, p := range series.Points {
		c.Labels[i] = p.Time().In(loc).Format(chartLabelLayout)
		c.Prices[i] = p.Price
		c.Tooltips[i] = "Price: " + stats.FormatPrice(p.Price)
	}
	return c
}

func BuildTable(series market.HistoricalSeries, opts stats.TableOptions, loc *time.Location) []TableRow {
	rows := stats.BuildTable(series.Points, opts)
	out := make([]TableRow, len(rows))
	for i, r := range rows {
		out[i] = TableRow{
			Date:   r.Point.Time().In(loc).Format(tableDateLayout),
			Price:  stats.FormatPrice(r.Point.Price),
			Change: stats.FormatRowChange(r),
			Volume: stats.FormatVolume(r.Point.Volume),
		}
		if r.HasChange {
			out[i].Class = "negative"
			if r.Change >= 0 {
				out[i].Class = "positive"
			}
		}
	}
	return out
}
