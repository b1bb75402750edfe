// Package metrics provides Prometheus metrics for the courtside ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ranking flow
	rankingsInserted  prometheus.Counter
	rankingsRemoved   prometheus.Counter
	metadataUpdates   prometheus.Counter
	comparisons       *prometheus.CounterVec
	directPlacements  *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	sessionsFinished  *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	confirmReplays    prometheus.Counter
	comparisonsPerRun prometheus.Histogram

	// Store
	storeOpDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	rankedItems     prometheus.Gauge
	rankedUsers     prometheus.Gauge

	// Write lanes
	laneDepth     *prometheus.GaugeVec
	laneRejected  prometheus.Counter
	laneApplyTime prometheus.Histogram
	laneCount     prometheus.Gauge

	// Audit
	auditRuns       prometheus.Counter
	auditViolations prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "courtside",
		subsystem:        "rank",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	m.rankingsInserted = m.counter("rankings_inserted_total", "Rankings inserted through insertAt")
	m.rankingsRemoved = m.counter("rankings_removed_total", "Rankings removed through removeAt")
	m.metadataUpdates = m.counter("metadata_updates_total", "Sentiment/affinity metadata writes")
	m.comparisons = m.counterVec("comparisons_total", "Pairwise comparisons answered", "result")
	m.directPlacements = m.counterVec("direct_placements_total", "Placements that skipped comparisons", "reason")
	m.sessionsStarted = m.counter("sessions_started_total", "Ranking sessions opened")
	m.sessionsFinished = m.counterVec("sessions_finished_total", "Ranking sessions closed by outcome", "outcome")
	m.sessionsActive = m.gauge("sessions_active", "Ranking sessions currently in flight")
	m.confirmReplays = m.counter("confirm_replays_total", "Confirm requests answered from the idempotency tracker")
	m.comparisonsPerRun = m.histogram("comparisons_per_ranking", "Comparisons needed to place one item",
		[]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 16})

	m.storeOpDuration = m.histogramVec("store_operation_duration_milliseconds", "Rank store operation latency", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Rank store failures by operation and kind", "op", "kind")
	m.rankedItems = m.gauge("ranked_items", "Ranked items across all users")
	m.rankedUsers = m.gauge("ranked_users", "Users with at least one ranked item")

	m.laneDepth = m.gaugeVec("write_lane_depth", "Queued writes per lane", "lane")
	m.laneRejected = m.counter("write_lane_rejected_total", "Writes rejected because a lane was full or stopped")
	m.laneApplyTime = m.histogram("write_lane_apply_milliseconds", "Time to apply one queued write", m.histogramBuckets)
	m.laneCount = m.gauge("write_lanes", "Configured single-writer lanes")

	m.auditRuns = m.counter("audit_runs_total", "Permutation audits executed")
	m.auditViolations = m.counter("audit_violations_total", "Users whose positions were not a dense 1..N permutation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause", m.histogramBuckets)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

// RecordRankingInserted increments the inserted rankings counter.
func RecordRankingInserted() { globalManager.rankingsInserted.Inc() }

// RecordRankingRemoved increments the removed rankings counter.
func RecordRankingRemoved() { globalManager.rankingsRemoved.Inc() }

// RecordMetadataUpdate increments the metadata write counter.
func RecordMetadataUpdate() { globalManager.metadataUpdates.Inc() }

// RecordComparison counts one answered comparison.
func RecordComparison(result string) { globalManager.comparisons.WithLabelValues(result).Inc() }

// RecordDirectPlacement counts a placement that needed no comparison.
func RecordDirectPlacement(reason string) {
	globalManager.directPlacements.WithLabelValues(reason).Inc()
}

// RecordSessionStarted counts an opened session and bumps the active gauge.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
	globalManager.sessionsActive.Inc()
}

// RecordSessionFinished counts a closed session and lowers the active gauge.
func RecordSessionFinished(outcome string) {
	globalManager.sessionsFinished.WithLabelValues(outcome).Inc()
	globalManager.sessionsActive.Dec()
}

// RecordConfirmReplay counts a confirm answered from the idempotency tracker.
func RecordConfirmReplay() { globalManager.confirmReplays.Inc() }

// RecordComparisonsPerRanking observes how many comparisons one placement took.
func RecordComparisonsPerRanking(n int) { globalManager.comparisonsPerRun.Observe(float64(n)) }

// RecordStoreOperation observes a store operation latency in milliseconds.
func RecordStoreOperation(op string, latencyMs float64) {
	globalManager.storeOpDuration.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op, kind string) { globalManager.storeErrors.WithLabelValues(op, kind).Inc() }

// UpdateRankedItems sets the total ranked items gauge.
func UpdateRankedItems(count int) { globalManager.rankedItems.Set(float64(count)) }

// UpdateRankedUsers sets the ranked users gauge.
func UpdateRankedUsers(count int) { globalManager.rankedUsers.Set(float64(count)) }

// UpdateLaneDepth sets the queued writes of one lane.
func UpdateLaneDepth(lane string, depth int) {
	globalManager.laneDepth.WithLabelValues(lane).Set(float64(depth))
}

// RecordLaneRejected counts a write refused by a lane.
func RecordLaneRejected() { globalManager.laneRejected.Inc() }

// RecordLaneApply observes the time spent applying one write.
func RecordLaneApply(latencyMs float64) { globalManager.laneApplyTime.Observe(latencyMs) }

// UpdateLaneCount sets the number of write lanes.
func UpdateLaneCount(count int) { globalManager.laneCount.Set(float64(count)) }

// RecordAuditRun counts an audit pass.
func RecordAuditRun() { globalManager.auditRuns.Inc() }

// RecordAuditViolation counts a user failing the permutation audit.
func RecordAuditViolation() { globalManager.auditViolations.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the private registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
