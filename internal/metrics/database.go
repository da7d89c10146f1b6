package metrics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBConnectionsOpen is the total number of open connections to the database
	DBConnectionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Total number of open database connections",
		},
	)

	// DBConnectionsInUse is the number of database connections currently in use
	DBConnectionsInUse = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		},
	)

	// DBConnectionsIdle is the number of idle database connections
	DBConnectionsIdle = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	// DBWaitCount is the cumulative number of waits for the single writer connection
	DBWaitCount = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_waits",
			Help:      "Cumulative number of connections waited for",
		},
	)

	// DBQueryDuration records database query latency
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// DBErrors counts database errors by type
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// StatsSource is satisfied by *sql.DB and anything that exposes its stats.
type StatsSource interface {
	Stats() sql.DBStats
}

// DBCollector periodically collects database pool statistics
type DBCollector struct {
	source   StatsSource
	stopChan chan struct{}
}

// NewDBCollector creates a new database metrics collector
func NewDBCollector(source StatsSource) *DBCollector {
	return &DBCollector{
		source:   source,
		stopChan: make(chan struct{}),
	}
}

// Start collects immediately and then at every interval until Stop or ctx is done.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector. It must be called at most once.
func (c *DBCollector) Stop() {
	close(c.stopChan)
}

func (c *DBCollector) collect() {
	if c.source == nil {
		return
	}

	stat := c.source.Stats()
	DBConnectionsOpen.Set(float64(stat.OpenConnections))
	DBConnectionsInUse.Set(float64(stat.InUse))
	DBConnectionsIdle.Set(float64(stat.Idle))
	DBWaitCount.Set(float64(stat.WaitCount))
}

// RecordQuery records metrics for a database operation started at start.
// Pass a nil err for expected outcomes such as a missing row.
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		errorType := "query_error"
		if errors.Is(err, context.Canceled) {
			errorType = "canceled"
		} else if errors.Is(err, context.DeadlineExceeded) {
			errorType = "timeout"
		}
		DBErrors.WithLabelValues(operation, errorType).Inc()
	}
}
