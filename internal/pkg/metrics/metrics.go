package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "greenway",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Click ingestion metrics
	ClicksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "clicks",
		Name:      "accepted_total",
		Help:      "Total click events accepted and persisted",
	})

	ClicksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "clicks",
		Name:      "rejected_total",
		Help:      "Total click events rejected",
	}, []string{"reason"}) // "geofence" | "payload"

	PassesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "clicks",
		Name:      "passes_recorded_total",
		Help:      "Total inferred traffic light passes recorded",
	})

	// Aggregation metrics
	AggregationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "aggregation",
		Name:      "runs_total",
		Help:      "Total aggregation runs",
	}, []string{"status"}) // "ok" | "error"

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "greenway",
		Subsystem: "aggregation",
		Name:      "duration_seconds",
		Help:      "Duration of an aggregation run",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	RangesProduced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "aggregation",
		Name:      "ranges_produced_total",
		Help:      "Total light ranges written by aggregation runs",
	})

	// Geodata metrics
	GeodataReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "geodata",
		Name:      "reloads_total",
		Help:      "Total traffic light reference file reload attempts",
	}, []string{"status"}) // "ok" | "degraded" | "unavailable"

	GeodataEntriesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "geodata",
		Name:      "entries_discarded_total",
		Help:      "Total malformed entries skipped while loading the reference file",
	})

	// Cache metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenway",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "greenway",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "greenway",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "greenway",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "greenway",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgx pool stats.
// Accepts the stat through a narrow interface so this package does not
// import pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
