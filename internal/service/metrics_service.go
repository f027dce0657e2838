package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	bundleDuration    *prometheus.HistogramVec
	joinDropped       *prometheus.CounterVec
	snapshotLoads     *prometheus.CounterVec
	snapshotLoadTime  prometheus.Observer
	snapshotTableRows *prometheus.GaugeVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	bundleCount          uint64
	bundleDurationTotal  uint64
	joinDroppedTotal     uint64
	snapshotVersion      atomic.Value
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	bundleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrics_bundle_duration_seconds",
		Help:    "Duration of metric bundle computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"bundle", "outcome"})

	joinDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "metrics_join_rows_dropped_total",
		Help: "Left rows dropped by inner joins because no right row matched",
	}, []string{"join"})

	snapshotLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_loads_total",
		Help: "Snapshot load attempts by outcome",
	}, []string{"source", "outcome"})

	snapshotLoadTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_load_duration_seconds",
		Help:    "Duration of snapshot loads",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	snapshotTableRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "snapshot_table_rows",
		Help: "Rows per table in the active snapshot",
	}, []string{"table"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		bundleDuration, joinDropped, snapshotLoads, snapshotLoadTime, snapshotTableRows, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		bundleDuration:    bundleDuration,
		joinDropped:       joinDropped,
		snapshotLoads:     snapshotLoads,
		snapshotLoadTime:  snapshotLoadTime,
		snapshotTableRows: snapshotTableRows,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveBundle records how long one metric bundle took and whether it failed.
func (m *MetricsService) ObserveBundle(bundle string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.bundleDuration.WithLabelValues(bundle, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.bundleCount, 1)
	atomic.AddUint64(&m.bundleDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveJoin counts the rows an inner join dropped.
func (m *MetricsService) ObserveJoin(stats models.JoinStats) {
	if m == nil || stats.DroppedLeft <= 0 {
		return
	}
	m.joinDropped.WithLabelValues(stats.Name).Add(float64(stats.DroppedLeft))
	atomic.AddUint64(&m.joinDroppedTotal, uint64(stats.DroppedLeft))
}

// ObserveSnapshotLoad records a snapshot load attempt. A nil snapshot marks a failure.
func (m *MetricsService) ObserveSnapshotLoad(source string, duration time.Duration, snapshot *models.Snapshot) {
	if m == nil {
		return
	}
	m.snapshotLoadTime.Observe(duration.Seconds())
	if snapshot == nil {
		m.snapshotLoads.WithLabelValues(source, "error").Inc()
		return
	}
	m.snapshotLoads.WithLabelValues(source, "ok").Inc()
	m.snapshotTableRows.WithLabelValues(snapshot.Sales.Name).Set(float64(snapshot.Sales.Len()))
	m.snapshotTableRows.WithLabelValues(snapshot.Orders.Name).Set(float64(snapshot.Orders.Len()))
	m.snapshotTableRows.WithLabelValues(snapshot.Products.Name).Set(float64(snapshot.Products.Len()))
	m.snapshotTableRows.WithLabelValues(snapshot.Customers.Name).Set(float64(snapshot.Customers.Len()))
	m.snapshotTableRows.WithLabelValues(snapshot.Reviews.Name).Set(float64(snapshot.Reviews.Len()))
	m.snapshotVersion.Store(snapshot.Version)
}

// Snapshot returns aggregated metrics suitable for the system endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	bundles := atomic.LoadUint64(&m.bundleCount)
	bundleDuration := atomic.LoadUint64(&m.bundleDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgBundleMs float64
	if bundles > 0 {
		avgBundleMs = float64(bundleDuration) / float64(bundles) / float64(time.Millisecond)
	}

	version, _ := m.snapshotVersion.Load().(string)

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BundleCount:              bundles,
		AverageBundleDurationMs:  avgBundleMs,
		JoinRowsDropped:          atomic.LoadUint64(&m.joinDroppedTotal),
		SnapshotVersion:          version,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
