package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetracker/pkg/market"
)

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func TestHighLow(t *testing.T) {
	high, low, ok := HighLow([]market.PricePoint{
		{Price: 95, High: 100, Low: 90},
		{Price: 100, High: 110, Low: 80},
	})
	require.True(t, ok)
	assert.Equal(t, 110.0, high)
	assert.Equal(t, 80.0, low)
}

func TestHighLowFallsBackToClose(t *testing.T) {
	high, low, ok := HighLow([]market.PricePoint{{Price: 50}, {Price: 70}, {Price: 60, High: 65, Low: 55}})
	require.True(t, ok)
	assert.Equal(t, 70.0, high)
	assert.Equal(t, 50.0, low)

	_, _, ok = HighLow(nil)
	assert.False(t, ok)
}

func TestBuildTableTwoCloses(t *testing.T) {
	rows := BuildTable([]market.PricePoint{
		{Timestamp: day(2025, 1, 6), Price: 100},
		{Timestamp: day(2025, 1, 13), Price: 110},
	}, TableOptions{Policy: PolicyWeekly})

	require.Len(t, rows, 2)
	assert.Equal(t, 110.0, rows[0].Point.Price)
	assert.Equal(t, "+10.00%", FormatRowChange(rows[0]))
	assert.Equal(t, "N/A", FormatRowChange(rows[1]))
}

func TestBuildTableWeeklyKeepsNewestPerISOWeek(t *testing.T) {
	var points []market.PricePoint
	start := time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC) // Monday, ISO week 52
	for i := 0; i < 14*7; i++ {
		points = append(points, market.PricePoint{
			Timestamp: start.AddDate(0, 0, i).UnixMilli(),
			Price:     float64(1000 + i),
		})
	}

	rows := BuildTable(points, TableOptions{Policy: PolicyWeekly, Weeks: 10})
	require.Len(t, rows, 10)

	// newest point overall is the Sunday closing the last week
	assert.Equal(t, points[len(points)-1].Timestamp, rows[0].Point.Timestamp)
	for i := range rows {
		assert.Equal(t, time.Sunday, rows[i].Point.Time().UTC().Weekday())
		if i > 0 {
			assert.Equal(t, rows[i-1].Point.Timestamp-7*24*time.Hour.Milliseconds(), rows[i].Point.Timestamp)
		}
	}
	assert.False(t, rows[9].HasChange)
	assert.True(t, rows[8].HasChange)
}

func TestBuildTableWeeklyCrossesYearBoundary(t *testing.T) {
	rows := BuildTable([]market.PricePoint{
		{Timestamp: day(2024, 12, 30), Price: 1}, // ISO 2025-W01
		{Timestamp: day(2025, 1, 2), Price: 2},   // ISO 2025-W01
	}, TableOptions{Policy: PolicyWeekly})
	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].Point.Price)
}

func TestBuildTableMonthWeek(t *testing.T) {
	rows := BuildTable([]market.PricePoint{
		{Timestamp: day(2025, 1, 3), Price: 1},  // key 2025-0
		{Timestamp: day(2025, 1, 8), Price: 2},  // key 2025-1
		{Timestamp: day(2025, 2, 4), Price: 3},  // key 2025-0, collides with Jan 3
		{Timestamp: day(2025, 2, 10), Price: 4}, // key 2025-1, collides with Jan 8
	}, TableOptions{Policy: PolicyMonthWeek})

	require.Len(t, rows, 2)
	assert.Equal(t, 4.0, rows[0].Point.Price)
	assert.Equal(t, 3.0, rows[1].Point.Price)
}

func TestBuildTableRecent(t *testing.T) {
	var points []market.PricePoint
	for i := 0; i < 40; i++ {
		points = append(points, market.PricePoint{Timestamp: int64(i) * 1000, Price: float64(i + 1)})
	}
	rows := BuildTable(points, TableOptions{Policy: PolicyRecent})
	require.Len(t, rows, DefaultRecent)
	assert.Equal(t, 40.0, rows[0].Point.Price)
	assert.Equal(t, 11.0, rows[29].Point.Price)
	assert.False(t, rows[29].HasChange)

	assert.Nil(t, BuildTable(nil, TableOptions{}))
}

func TestParseTablePolicy(t *testing.T) {
	p, err := ParseTablePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyWeekly, p)

	p, err = ParseTablePolicy("month_week")
	require.NoError(t, err)
	assert.Equal(t, PolicyMonthWeek, p)

	_, err = ParseTablePolicy("daily")
	assert.Error(t, err)
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1_500_000_000, "$1.50B"},
		{2_500_000, "$2.50M"},
		{2_500, "$2.50K"},
		{500, "$500"},
		{0, "N/A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatVolume(tt.in), "volume %v", tt.in)
	}
}

func TestFormatPriceAndChange(t *testing.T) {
	assert.Equal(t, "$80,000.00", FormatPrice(80000))
	assert.Equal(t, "$1,234.57", FormatPrice(1234.567))
	assert.Equal(t, "+1.50%", FormatChange(1.5))
	assert.Equal(t, "-2.00%", FormatChange(-2))
	assert.Equal(t, "0.00%", FormatChange(0))
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, Up, DirectionOf(1.5))
	assert.Equal(t, Down, DirectionOf(-0.2))
	assert.Equal(t, Flat, DirectionOf(0.001))
}
