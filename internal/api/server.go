// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/tradeledger/internal/api/handler/api"
	"github.com/newthinker/tradeledger/internal/api/middleware"
	"github.com/newthinker/tradeledger/internal/metrics"
	"github.com/newthinker/tradeledger/internal/runlog"
	"github.com/newthinker/tradeledger/internal/storage/archive"
)

// Server represents the HTTP server for the ledger service
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string // empty disables the Prometheus endpoint
}

// Dependencies holds the components the routes are served from.
type Dependencies struct {
	Ledger  handler.SnapshotSource
	Trigger handler.Trigger
	Runs    *runlog.Log
	Archive archive.Storage   // optional
	Metrics *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Ledger == nil || deps.Trigger == nil || deps.Runs == nil {
		return nil, fmt.Errorf("ledger, trigger and run log are required")
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var h http.Handler = mux
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// A trigger replays every stored signal before responding.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	auth := middleware.APIKeyAuth(cfg.APIKey, s.logger)
	v1 := func(pattern string, fn http.HandlerFunc) {
		s.mux.Handle(pattern, auth(fn))
	}

	ledger := handler.NewLedgerHandler(deps.Ledger)
	v1("GET /api/v1/trades", ledger.Trades)
	v1("GET /api/v1/metrics", ledger.Metrics)
	v1("GET /api/v1/quality", ledger.Quality)
	v1("GET /api/v1/configurations", ledger.Configurations)
	v1("POST /api/v1/refresh", ledger.Refresh)

	bt := handler.NewBacktestHandler(deps.Trigger)
	v1("POST /api/v1/backtest", bt.Run)

	runs := handler.NewRunsHandler(deps.Runs, deps.Archive)
	v1("GET /api/v1/runs", runs.List)
	v1("GET /api/v1/runs/{id}", runs.Get)
	v1("GET /api/v1/runs/{id}/report", runs.Report)
	v1("GET /api/v1/reports", runs.Reports)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
