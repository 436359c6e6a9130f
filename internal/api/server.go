// Package api serves the tracker's data to browsers: JSON endpoints, the
// rendered chart and a websocket feed of every refresh.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pricetracker/internal/render"
	"pricetracker/internal/stats"
	"pricetracker/pkg/market"
)

// State is the read side of the tracker.
type State interface {
	Snapshot() (market.CurrentPriceSnapshot, bool)
	Series() (market.HistoricalSeries, bool)
	LastError(chain string) error
	Invalidate(ctx context.Context) error
}

// Refresher triggers an out-of-schedule refresh.
type Refresher interface {
	RefreshCurrent(ctx context.Context)
	RefreshHistorical(ctx context.Context)
}

type Options struct {
	Addr         string
	AllowOrigin  string
	WriteTimeout time.Duration
	Table        stats.TableOptions
	Location     *time.Location // table dates, UTC when nil
}

type Server struct {
	state      State
	refresher  Refresher
	dashboard  *render.Dashboard
	chart      *render.ChartImage
	hub        *Hub
	table      stats.TableOptions
	loc        *time.Location
	log        *zap.Logger
	httpServer *http.Server
}

func NewServer(state State, refresher Refresher, dashboard *render.Dashboard, chart *render.ChartImage,
	hub *Hub, opts Options, log *zap.Logger) *Server {
	s := &Server{
		state:     state,
		refresher: refresher,
		dashboard: dashboard,
		chart:     chart,
		hub:       hub,
		table:     opts.Table,
		loc:       opts.Location,
		log:       log.Named("api"),
	}

	mux := http.NewServeMux()

	// Price routes
	mux.HandleFunc("GET /v1/price/current", s.handleCurrent)
	mux.HandleFunc("GET /v1/price/history", s.handleHistory)
	mux.HandleFunc("GET /v1/price/table", s.handleTable)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	// Presentation routes
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /v1/chart.png", s.handleChart)
	mux.Handle("GET /v1/ws", hub)

	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	mux.HandleFunc("GET /health", s.handleHealth)

	if s.loc == nil {
		s.loc = time.UTC
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      corsMiddleware(mux, opts.AllowOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.state.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "price not resolved yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	series, ok := s.state.Series()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "history not resolved yet")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// handleTable renders the table with an optional ?policy= override.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	series, ok := s.state.Series()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "history not resolved yet")
		return
	}

	opts := s.table
	if p := r.URL.Query().Get("policy"); p != "" {
		policy, err := stats.ParseTablePolicy(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Policy = policy
	}
	writeJSON(w, http.StatusOK, render.BuildTable(series, opts, s.loc))
}

type statsResponse struct {
	High6m       float64 `json:"high_6m"`
	Low6m        float64 `json:"low_6m"`
	SeriesChange float64 `json:"series_change_percent"`
	Points       int     `json:"points"`
	Source       string  `json:"source"`
	Estimated    bool    `json:"estimated"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	series, ok := s.state.Series()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "history not resolved yet")
		return
	}
	high, low, _ := stats.HighLow(series.Points)
	change, _ := stats.SeriesChange(series.Points)
	writeJSON(w, http.StatusOK, statsResponse{
		High6m:       high,
		Low6m:        low,
		SeriesChange: change,
		Points:       len(series.Points),
		Source:       series.Source,
		Estimated:    series.Estimated,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.View())
}

func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request) {
	img := s.chart.PNG()
	if img == nil {
		writeError(w, http.StatusServiceUnavailable, "chart not rendered yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(img)
}

// handleRefresh bypasses the timers. The cache still applies, so a refresh
// within the TTL returns the cached values unless ?force=true drops them first.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("force") == "true" {
		if err := s.state.Invalidate(r.Context()); err != nil {
			s.log.Error("cache invalidation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
	}
	s.refresher.RefreshCurrent(r.Context())
	s.refresher.RefreshHistorical(r.Context())
	writeJSON(w, http.StatusOK, s.dashboard.View())
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Clients   int               `json:"ws_clients"`
	Degraded  map[string]string `json:"degraded,omitempty"`
}

// handleHealth reports "degraded" while any chain is serving placeholder data.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Clients:   s.hub.Clients(),
	}
	for _, chain := range []string{"current", "historical"} {
		if err := s.state.LastError(chain); err != nil {
			if resp.Degraded == nil {
				resp.Degraded = make(map[string]string)
			}
			resp.Degraded[chain] = err.Error()
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- middleware ---

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
