package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	refreshCycles     *prometheus.CounterVec
	refreshDuration   prometheus.Histogram
	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	tradesSimulated   prometheus.Counter
	signalsRejected   *prometheus.CounterVec
	writeBackFailures *prometheus.CounterVec
	ledgerTrades      prometheus.Gauge
	integrityScore    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.refreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeledger_refresh_cycles_total",
			Help: "Total number of ledger refresh cycles",
		},
		[]string{"status"},
	)
	r.refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradeledger_refresh_duration_seconds",
			Help:    "Refresh cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeledger_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradeledger_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.tradesSimulated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradeledger_trades_simulated_total",
			Help: "Total number of completed trades produced by backtest runs",
		},
	)
	r.signalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeledger_signals_rejected_total",
			Help: "Signals skipped by the simulator",
		},
		[]string{"reason"},
	)
	r.writeBackFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeledger_writeback_failures_total",
			Help: "Failed result write-back operations",
		},
		[]string{"stage"},
	)
	r.ledgerTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeledger_ledger_trades",
			Help: "Number of trades in the last published ledger",
		},
	)
	r.integrityScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeledger_data_integrity_score",
			Help: "Data integrity score of the last published ledger",
		},
	)

	reg.MustRegister(r.refreshCycles)
	reg.MustRegister(r.refreshDuration)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesSimulated)
	reg.MustRegister(r.signalsRejected)
	reg.MustRegister(r.writeBackFailures)
	reg.MustRegister(r.ledgerTrades)
	reg.MustRegister(r.integrityScore)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRefresh records a refresh cycle. status is "success" or "failed".
func (r *Registry) RecordRefresh(status string, duration float64) {
	r.refreshCycles.WithLabelValues(status).Inc()
	r.refreshDuration.Observe(duration)
}

// SetLedger publishes the size and integrity score of the current ledger.
func (r *Registry) SetLedger(trades, integrityScore int) {
	r.ledgerTrades.Set(float64(trades))
	r.integrityScore.Set(float64(integrityScore))
}

// RecordBacktest records a backtest run and the trades it produced.
func (r *Registry) RecordBacktest(status string, trades int, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
	r.tradesSimulated.Add(float64(trades))
}

// RecordRejections records n signals skipped by the simulator for reason.
func (r *Registry) RecordRejections(reason string, n int) {
	r.signalsRejected.WithLabelValues(reason).Add(float64(n))
}

// RecordWriteBackFailure records a failed delete or insert during write-back.
func (r *Registry) RecordWriteBackFailure(stage string) {
	r.writeBackFailures.WithLabelValues(stage).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
