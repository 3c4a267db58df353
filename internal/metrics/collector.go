package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Database access layer metrics
// =============================================================================

// Collector records connection lifecycle and query metrics.
// A nil *Collector is valid and records nothing, so callers never have to
// guard metric calls.
type Collector struct {
	connectionsCreated     *prometheus.CounterVec
	connectionsInvalidated *prometheus.CounterVec
	connectionRetries      prometheus.Counter
	connectionsLive        prometheus.Gauge

	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram

	resultRowsTruncated prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg.
// A nil reg uses the default prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.connectionsCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Total number of MySQL connections established",
		},
		[]string{"database"},
	)

	c.connectionsInvalidated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_invalidated_total",
			Help:      "Total number of MySQL connections closed and forgotten",
		},
		[]string{"database", "reason"}, // reason: stale, fault, explicit, worker_done
	)

	c.connectionRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_retries_total",
			Help:      "Total number of connection establishment retries",
		},
	)

	c.connectionsLive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_live",
			Help:      "Number of live per-worker connection handles",
		},
	)

	c.queriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries by outcome",
		},
		[]string{"status"}, // status: ok, error, timeout
	)

	c.queryDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	c.resultRowsTruncated = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_rows_truncated_total",
			Help:      "Total number of result rows dropped by size bounding",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordConnectionCreated records one established connection.
func (c *Collector) RecordConnectionCreated(database string) {
	if c == nil {
		return
	}
	c.connectionsCreated.WithLabelValues(database).Inc()
	c.connectionsLive.Inc()
}

// RecordConnectionInvalidated records one invalidated connection.
func (c *Collector) RecordConnectionInvalidated(database, reason string) {
	if c == nil {
		return
	}
	c.connectionsInvalidated.WithLabelValues(database, reason).Inc()
	c.connectionsLive.Dec()
}

// RecordConnectionRetry records one connection establishment retry.
func (c *Collector) RecordConnectionRetry() {
	if c == nil {
		return
	}
	c.connectionRetries.Inc()
}

// RecordQuery records one query outcome.
func (c *Collector) RecordQuery(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.queriesTotal.WithLabelValues(status).Inc()
	c.queryDuration.Observe(duration.Seconds())
}

// RecordRowsTruncated records rows dropped by the result bounder.
func (c *Collector) RecordRowsTruncated(dropped int) {
	if c == nil || dropped <= 0 {
		return
	}
	c.resultRowsTruncated.Add(float64(dropped))
}
