package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Move kinds recorded by the allocation engine.
const (
	MoveKindDirect      = "direct"
	MoveKindSwap        = "swap"
	MoveKindPushForward = "push_forward"
	MoveKindNoop        = "noop"
)

// MetricsSnapshot is a JSON-friendly digest of the counters for the summary endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	Moves                    uint64    `json:"moves"`
	Transitions              uint64    `json:"transitions"`
	ImportedRows             uint64    `json:"importedRows"`
	FailedImportRows         uint64    `json:"failedImportRows"`
	TickPromotions           uint64    `json:"tickPromotions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService owns the Prometheus registry for HTTP, cache and scheduling instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	transitions     *prometheus.CounterVec
	moves           *prometheus.CounterVec
	bulkRows        *prometheus.CounterVec
	tickPromotions  prometheus.Counter
	tickLastRun     prometheus.Gauge
	leader          prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	moveCount            uint64
	transitionCount      uint64
	importedCount        uint64
	failedImportCount    uint64
	promotionCount       uint64
}

// NewMetricsService registers the collectors.
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_transitions_total",
		Help: "State machine actions by outcome",
	}, []string{"action", "result"})

	moves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slot_moves_total",
		Help: "Successful slot moves by resolution kind",
	}, []string{"kind"})

	bulkRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_assign_rows_total",
		Help: "Bulk import rows by outcome",
	}, []string{"result"})

	tickPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daily_tick_transitions_total",
		Help: "Planned tasks promoted to Pending by the daily tick",
	})

	tickLastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daily_tick_last_success_timestamp_seconds",
		Help: "Unix time of the last successful daily tick",
	})

	leader := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daily_tick_leader",
		Help: "1 when this instance holds the daily tick lease",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		transitions, moves, bulkRows, tickPromotions, tickLastRun, leader, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		transitions:     transitions,
		moves:           moves,
		bulkRows:        bulkRows,
		tickPromotions:  tickPromotions,
		tickLastRun:     tickLastRun,
		leader:          leader,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// ObserveHTTPRequest records request metrics.
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
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts one state machine action. result is "ok" or an error code.
func (m *MetricsService) RecordTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
	atomic.AddUint64(&m.transitionCount, 1)
}

// RecordMove counts one successful move by resolution kind.
func (m *MetricsService) RecordMove(kind string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.moveCount, 1)
}

// RecordBulkRows counts imported and failed rows of one batch.
func (m *MetricsService) RecordBulkRows(succeeded, failed int) {
	if m == nil {
		return
	}
	m.bulkRows.WithLabelValues("succeeded").Add(float64(succeeded))
	m.bulkRows.WithLabelValues("failed").Add(float64(failed))
	atomic.AddUint64(&m.importedCount, uint64(succeeded))
	atomic.AddUint64(&m.failedImportCount, uint64(failed))
}

// RecordDailyTick records a completed tick.
func (m *MetricsService) RecordDailyTick(promoted int, at time.Time) {
	if m == nil {
		return
	}
	m.tickPromotions.Add(float64(promoted))
	m.tickLastRun.Set(float64(at.Unix()))
	atomic.AddUint64(&m.promotionCount, uint64(promoted))
}

// SetLeader flips the leader gauge.
func (m *MetricsService) SetLeader(isLeader bool) {
	if m == nil {
		return
	}
	if isLeader {
		m.leader.Set(1)
		return
	}
	m.leader.Set(0)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		Moves:                    atomic.LoadUint64(&m.moveCount),
		Transitions:              atomic.LoadUint64(&m.transitionCount),
		ImportedRows:             atomic.LoadUint64(&m.importedCount),
		FailedImportRows:         atomic.LoadUint64(&m.failedImportCount),
		TickPromotions:           atomic.LoadUint64(&m.promotionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
