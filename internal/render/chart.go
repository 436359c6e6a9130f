package render

import (
	"errors"
	"sync"
	"time"

	"github.com/vicanso/go-charts/v2"
	"go.uber.org/zap"

	"pricetracker/pkg/market"
)

var errNotEnoughPoints = errors.New("not enough data points")

// ChartPNG draws the series as a line chart. Estimated series get a subtitle
// so the image can't be mistaken for real data.
func ChartPNG(title string, series market.HistoricalSeries, width, height int, loc *time.Location) ([]byte, error) {
	if len(series.Points) < 2 {
		return nil, errNotEnoughPoints
	}

	data := BuildChart(series, loc)

	yMin, yMax := data.Prices[0], data.Prices[0]
	for _, v := range data.Prices {
		yMin = min(yMin, v)
		yMax = max(yMax, v)
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin = max(0, yMin-pad)
	yMax += pad

	subtitle := series.Source
	if series.Estimated {
		subtitle = "Estimated data"
	}

	painter, err := charts.LineRender([][]float64{data.Prices},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: data.Labels, BoundaryGap: charts.FalseFlag(), SplitNumber: 6}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// ChartImage re-renders the PNG on every series and keeps the last one.
type ChartImage struct {
	Title  string
	Width  int
	Height int
	Loc    *time.Location
	Log    *zap.Logger

	mu  sync.RWMutex
	png []byte
}

func (c *ChartImage) RenderSnapshot(market.CurrentPriceSnapshot) {}

func (c *ChartImage) RenderSeries(series market.HistoricalSeries) {
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	img, err := ChartPNG(c.Title, series, c.Width, c.Height, loc)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("chart render failed", zap.Int("points", len(series.Points)), zap.Error(err))
		}
		return
	}
	c.mu.Lock()
	c.png = img
	c.mu.Unlock()
}

// PNG returns the last rendered image, nil before the first series.
func (c *ChartImage) PNG() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.png
}
