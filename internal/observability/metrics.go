// Package observability provides Prometheus metrics for backtest and storage activity.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRuns     *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	Rebalances       prometheus.Counter
	PositionsOpened  prometheus.Counter
	RuleExclusions   prometheus.Counter
	MissingQuotes    *prometheus.CounterVec

	// Feature metrics
	FeatureRowsComputed prometheus.Counter

	// Ingestion metrics
	PricesImported *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulBacktest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gtaa"
	}
	factory := promauto.With(reg)

	return &Metrics{
		BacktestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of portfolio backtests by status",
		}, []string{"status"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Portfolio backtest duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		Rebalances: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalances_total",
			Help:      "Total number of rebalance dates processed",
		}),
		PositionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "positions_opened_total",
			Help:      "Total number of holdings opened at rebalances",
		}),
		RuleExclusions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rule_exclusions_total",
			Help:      "Total number of candidates excluded by portfolio rules",
		}),
		MissingQuotes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "missing_quotes_total",
			Help:      "Total number of held tickers without a close price by policy",
		}, []string{"policy"}),
		FeatureRowsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "rows_computed_total",
			Help:      "Total number of feature rows computed",
		}),
		PricesImported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "prices_imported_total",
			Help:      "Total number of daily bars imported by ticker",
		}, []string{"ticker"}),
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		LastSuccessfulBacktest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful portfolio backtest",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordBacktestRun records a finished portfolio backtest.
func RecordBacktestRun(status string, d time.Duration) {
	DefaultMetrics.BacktestRuns.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(d.Seconds())
	if status == "success" {
		DefaultMetrics.LastSuccessfulBacktest.SetToCurrentTime()
	}
}

// RecordRebalance records one rebalance and the holdings it opened.
func RecordRebalance(positions int) {
	DefaultMetrics.Rebalances.Inc()
	DefaultMetrics.PositionsOpened.Add(float64(positions))
}

// RecordRuleExclusion increments the rule exclusions counter.
func RecordRuleExclusion() {
	DefaultMetrics.RuleExclusions.Inc()
}

// RecordMissingQuote records a held ticker valued without a close on its evaluation date.
func RecordMissingQuote(policy string) {
	DefaultMetrics.MissingQuotes.WithLabelValues(policy).Inc()
}

// RecordFeatureRows adds n computed feature rows.
func RecordFeatureRows(n int) {
	DefaultMetrics.FeatureRowsComputed.Add(float64(n))
}

// RecordPricesImported adds n imported bars for ticker.
func RecordPricesImported(ticker string, n int) {
	DefaultMetrics.PricesImported.WithLabelValues(ticker).Add(float64(n))
}

// RecordQueryDuration records a database query duration.
func RecordQueryDuration(database, operation string, d time.Duration) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
}
