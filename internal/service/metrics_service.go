package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/school-intake-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the intake pipeline and keeps a few
// counters in memory for the JSON summary endpoint. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	stageOutcomes   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	remoteDuration  *prometheus.HistogramVec
	remoteTotal     *prometheus.CounterVec
	linkEncodings   *prometheus.CounterVec
	folderCache     *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	remoteCount          uint64
	remoteFailures       uint64
	cacheHitCount        uint64
	cacheMissCount       uint64

	mu            sync.Mutex
	submissionsBy map[string]int64
	stageFailures map[string]int64
}

// NewMetricsService registers the collectors on a private registry.
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

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Pipeline runs by final status",
	}, []string{"status"})

	stageOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_stage_outcomes_total",
		Help: "Pipeline stage attempts by stage and outcome",
	}, []string{"stage", "outcome"})

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_remote_call_duration_seconds",
		Help:    "Duration of record service calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	remoteTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_remote_calls_total",
		Help: "Record service calls by operation and result",
	}, []string{"operation", "result"})

	linkEncodings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_link_encodings_total",
		Help: "Link column writes by the encoding that was accepted",
	}, []string{"encoder"})

	folderCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_folder_cache_lookups_total",
		Help: "Folder cache lookups by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, stageOutcomes, stageDuration, remoteDuration, remoteTotal, linkEncodings, folderCache, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		stageOutcomes:   stageOutcomes,
		stageDuration:   stageDuration,
		remoteDuration:  remoteDuration,
		remoteTotal:     remoteTotal,
		linkEncodings:   linkEncodings,
		folderCache:     folderCache,
		submissionsBy:   map[string]int64{},
		stageFailures:   map[string]int64{},
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveSubmission counts a finished pipeline run.
func (m *MetricsService) ObserveSubmission(status models.RunStatus) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
	m.mu.Lock()
	m.submissionsBy[string(status)]++
	m.mu.Unlock()
}

// ObserveStage records one stage outcome.
func (m *MetricsService) ObserveStage(outcome models.StageOutcome) {
	if m == nil {
		return
	}
	label := "ok"
	switch {
	case outcome.Skipped:
		label = "skipped"
	case !outcome.OK:
		label = "failed"
		m.mu.Lock()
		m.stageFailures[outcome.Stage]++
		m.mu.Unlock()
	}
	m.stageOutcomes.WithLabelValues(outcome.Stage, label).Inc()
	if !outcome.Skipped {
		m.stageDuration.WithLabelValues(outcome.Stage).Observe(float64(outcome.Duration) / 1000)
	}
}

// ObserveRemoteCall records one record service call.
func (m *MetricsService) ObserveRemoteCall(operation string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
		atomic.AddUint64(&m.remoteFailures, 1)
	}
	atomic.AddUint64(&m.remoteCount, 1)
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.remoteTotal.WithLabelValues(operation, result).Inc()
}

// ObserveLinkEncoding counts which link encoding the record service accepted.
func (m *MetricsService) ObserveLinkEncoding(encoder string) {
	if m == nil {
		return
	}
	m.linkEncodings.WithLabelValues(encoder).Inc()
}

// RecordFolderCacheLookup counts folder cache hits and misses.
func (m *MetricsService) RecordFolderCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.folderCache.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.folderCache.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var hitRatio float64
	if hits+misses > 0 {
		hitRatio = float64(hits) / float64(hits+misses)
	}

	m.mu.Lock()
	submissions := make(map[string]int64, len(m.submissionsBy))
	for k, v := range m.submissionsBy {
		submissions[k] = v
	}
	failures := make(map[string]int64, len(m.stageFailures))
	for k, v := range m.stageFailures {
		failures[k] = v
	}
	m.mu.Unlock()

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Submissions:              submissions,
		StageFailures:            failures,
		RemoteCalls:              atomic.LoadUint64(&m.remoteCount),
		RemoteFailures:           atomic.LoadUint64(&m.remoteFailures),
		FolderCacheHitRatio:      hitRatio,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
