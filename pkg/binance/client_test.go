package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetracker/pkg/market"
)

func serve(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCurrent(t *testing.T) {
	srv := serve(t, "/api/v3/ticker/24hr", `{"symbol":"BTCUSDT","priceChangePercent":"-2.000","openPrice":"100000.00","lastPrice":"98000.00","highPrice":"100500.00","lowPrice":"97500.00","quoteVolume":"2500000000.0"}`)

	snap, err := New(srv.Client(), srv.URL, "BTCUSDT").FetchCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 98000.0, snap.Price)
	assert.Equal(t, -2.0, snap.Change24hPercent)
	assert.Equal(t, 100500.0, snap.High24h)
	assert.Equal(t, 97500.0, snap.Low24h)
	assert.Equal(t, "binance", snap.Source)
}

func TestFetchCurrentComputesChangeFromOpen(t *testing.T) {
	srv := serve(t, "/api/v3/ticker/24hr", `{"openPrice":"100","lastPrice":"110","highPrice":"111","lowPrice":"99"}`)

	snap, err := New(srv.Client(), srv.URL, "BTCUSDT").FetchCurrent(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, snap.Change24hPercent, 1e-9)
}

func TestFetchCurrentMissingPrice(t *testing.T) {
	srv := serve(t, "/api/v3/ticker/24hr", `{"code":-1121,"msg":"Invalid symbol."}`)

	_, err := New(srv.Client(), srv.URL, "NOPE").FetchCurrent(context.Background())
	assert.ErrorIs(t, err, market.ErrMalformedResponse)
}

func TestFetchHistorical(t *testing.T) {
	srv := serve(t, "/api/v3/klines", `[
		[1725148800000,"57000.0","58000.0","56000.0","57500.0","1000.0",1725235199999,"57500000.0",100,"1","1","0"],
		[1725235200000,"57500.0","59000.0","57000.0","58500.0","1100.0",1725321599999,"64350000.0",120,"1","1","0"]
	]`)

	series, err := New(srv.Client(), srv.URL, "BTCUSDT").FetchHistorical(context.Background(),
		time.UnixMilli(1725148800000), time.UnixMilli(1725321599999))
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())

	first := series.Points[0]
	assert.Equal(t, int64(1725148800000), first.Timestamp)
	assert.Equal(t, 57500.0, first.Price)
	assert.Equal(t, 58000.0, first.High)
	assert.Equal(t, 56000.0, first.Low)
	assert.Equal(t, 57500000.0, first.Volume)

	latest, ok := series.Latest()
	require.True(t, ok)
	assert.Equal(t, 58500.0, latest.Price)
}

func TestFetchHistoricalMalformedRow(t *testing.T) {
	srv := serve(t, "/api/v3/klines", `[[1725148800000,"57000.0"]]`)

	_, err := New(srv.Client(), srv.URL, "BTCUSDT").FetchHistorical(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, market.ErrMalformedResponse)
}

func TestFetchHistoricalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.Client(), srv.URL, "BTCUSDT").FetchHistorical(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, market.ErrNetwork)
}
