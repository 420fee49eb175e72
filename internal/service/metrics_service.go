package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-api/internal/dto"
)

const metricsNamespace = "lms"

// MetricsService owns the Prometheus registry and keeps running totals for
// the admin system snapshot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	dashboardBuild  *prometheus.HistogramVec

	submissions      *prometheus.CounterVec
	fallbackAttempts *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	approvals        *prometheus.CounterVec
	compensations    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dashboardBuildCount  uint64
	dashboardBuildTotal  uint64
	submissionCount      uint64
	fallbackCount        uint64
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, labels)
}

func newHistogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry:        prometheus.NewRegistry(),
		requestDuration: newHistogramVec("http_request_duration_seconds", "Duration of HTTP requests in seconds", "method", "path", "status"),
		requestTotal:    newCounterVec("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		cacheLookups:    newCounterVec("cache_lookups_total", "View cache lookups by result", "result"),
		dashboardBuild:  newHistogramVec("dashboard_build_seconds", "Time to compose a dashboard on cache miss", "role"),

		submissions:      newCounterVec("submissions_total", "Assignment submissions by write path and outcome", "path", "outcome"),
		fallbackAttempts: newCounterVec("submission_fallback_total", "Secondary endpoint attempts by triggering error kind", "kind"),
		uploads:          newCounterVec("uploads_total", "File uploads by mode and outcome", "mode", "outcome"),
		approvals:        newCounterVec("reviews_total", "Admin review decisions by entity and decision", "entity", "decision"),
		compensations:    newCounterVec("compensations_total", "Orphaned upload cleanup jobs by outcome", "outcome"),
	}

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_read_seconds",
		Help:      "Latency for cache reads",
		Buckets:   prometheus.DefBuckets,
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Latency for cache writes",
		Buckets:   prometheus.DefBuckets,
	})
	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})
	m.cacheLatency, m.cacheWrite, m.cacheHitRatio = cacheLatency, cacheWrite, cacheHitRatio

	m.registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLookups, m.dashboardBuild,
		cacheLatency, cacheWrite, cacheHitRatio, goroutines,
		m.submissions, m.fallbackAttempts, m.uploads, m.approvals, m.compensations)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
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
	labelStatus := strconv.Itoa(status)
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
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
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

// ObserveDashboardBuild records how long an uncached dashboard took to compose.
func (m *MetricsService) ObserveDashboardBuild(role string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dashboardBuild.WithLabelValues(role).Observe(duration.Seconds())
	atomic.AddUint64(&m.dashboardBuildCount, 1)
	atomic.AddUint64(&m.dashboardBuildTotal, uint64(duration.Nanoseconds()))
}

// RecordSubmission counts a finished submission attempt.
func (m *MetricsService) RecordSubmission(path dto.SubmissionPath, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(path), outcome).Inc()
	atomic.AddUint64(&m.submissionCount, 1)
}

// RecordFallback counts a hop to the secondary submission endpoint.
func (m *MetricsService) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.fallbackAttempts.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.fallbackCount, 1)
}

// RecordUpload counts a file upload.
func (m *MetricsService) RecordUpload(chunked bool, ok bool) {
	if m == nil {
		return
	}
	mode := "single"
	if chunked {
		mode = "chunked"
	}
	m.uploads.WithLabelValues(mode, outcomeLabel(ok)).Inc()
}

// RecordReview counts an admin review decision.
func (m *MetricsService) RecordReview(entity, decision string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(entity, decision).Inc()
}

// RecordCompensation counts a cleanup job result.
func (m *MetricsService) RecordCompensation(ok bool) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(outcomeLabel(ok)).Inc()
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Snapshot returns aggregated metrics for the admin system endpoint.
func (m *MetricsService) Snapshot() dto.SystemMetrics {
	if m == nil {
		return dto.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	builds := atomic.LoadUint64(&m.dashboardBuildCount)
	buildDuration := atomic.LoadUint64(&m.dashboardBuildTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgBuildMs float64
	if builds > 0 {
		avgBuildMs = float64(buildDuration) / float64(builds) / float64(time.Millisecond)
	}

	return dto.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DashboardBuilds:          builds,
		AverageDashboardBuildMs:  avgBuildMs,
		Submissions:              atomic.LoadUint64(&m.submissionCount),
		FallbackSubmissions:      atomic.LoadUint64(&m.fallbackCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
