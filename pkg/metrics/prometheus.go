// Package metrics provides Prometheus metrics for the area51 board service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the area51 service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Board business metrics
	boardMutations    *prometheus.CounterVec
	boardEvictions    *prometheus.CounterVec
	boardSize         *prometheus.GaugeVec
	validationRejects *prometheus.CounterVec
	mergeAppended     prometheus.Counter
	idempotentRepeats prometheus.Counter

	// Store metrics
	persistOutcomes *prometheus.CounterVec
	persistLatency  *prometheus.HistogramVec
	loadFailures    *prometheus.CounterVec
	loadLatency     *prometheus.HistogramVec

	// Dispatcher metrics
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueError *prometheus.CounterVec
	taskLatency       *prometheus.HistogramVec
	taskErrors        *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "area51",
		subsystem:        "boards",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, l ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: labels,
		}, l)
	}
	histVec := func(name, help string, l ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		}, l)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: labels,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: labels,
		})
	}

	m.boardMutations = counterVec("mutations_total", "Board mutations by operation", "board", "op")
	m.boardEvictions = counterVec("evictions_total", "Records evicted by the top-N capacity policy", "board")
	m.boardSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "records", Help: "Records currently held in memory per board", ConstLabels: labels,
	}, []string{"board"})
	m.validationRejects = counterVec("validation_rejects_total", "Add requests rejected by validation", "field")
	m.mergeAppended = counter("merge_appended_total", "Records appended to hist by merge")
	m.idempotentRepeats = counter("idempotent_repeats_total", "Add requests short-circuited by idempotency key")

	m.persistOutcomes = counterVec("persist_outcomes_total", "Replace-all outcomes by board", "board", "outcome")
	m.persistLatency = histVec("persist_latency_milliseconds", "Replace-all round-trip latency in milliseconds", "board")
	m.loadFailures = counterVec("load_failures_total", "Board loads that failed and yielded an empty board", "board")
	m.loadLatency = histVec("load_latency_milliseconds", "Board load latency in milliseconds", "board")

	m.queueSize = gauge("queue_size", "Tasks waiting in the dispatcher queue")
	m.queueCapacity = gauge("queue_capacity", "Dispatcher queue capacity")
	m.queueEnqueueError = counterVec("queue_enqueue_errors_total", "Rejected task submissions", "reason")
	m.taskLatency = histVec("task_latency_milliseconds", "Dispatcher task latency in milliseconds", "task")
	m.taskErrors = counterVec("task_errors_total", "Dispatcher tasks that returned an error", "task")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// RecordBoardMutation counts an engine operation that changed a board.
func RecordBoardMutation(board, op string) {
	if !globalManager.enabled {
		return
	}
	globalManager.boardMutations.WithLabelValues(board, op).Inc()
}

// RecordEvictions counts records dropped by the capacity policy.
func RecordEvictions(board string, n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.boardEvictions.WithLabelValues(board).Add(float64(n))
}

// UpdateBoardSize sets the in-memory record count of a board.
func UpdateBoardSize(board string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.boardSize.WithLabelValues(board).Set(float64(n))
}

// RecordValidationReject counts a rejected add request.
func RecordValidationReject(field string) {
	if !globalManager.enabled {
		return
	}
	globalManager.validationRejects.WithLabelValues(field).Inc()
}

// RecordMergeAppended counts records appended to hist by merge.
func RecordMergeAppended(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.mergeAppended.Add(float64(n))
}

// RecordIdempotentRepeat counts requests replayed with a known key.
func RecordIdempotentRepeat() {
	if !globalManager.enabled {
		return
	}
	globalManager.idempotentRepeats.Inc()
}

// RecordPersistOutcome counts a replace-all result.
func RecordPersistOutcome(board, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.persistOutcomes.WithLabelValues(board, outcome).Inc()
}

// RecordPersistLatency observes replace-all latency.
func RecordPersistLatency(board string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.persistLatency.WithLabelValues(board).Observe(latencyMs)
}

// RecordLoadFailure counts a failed board load.
func RecordLoadFailure(board string) {
	if !globalManager.enabled {
		return
	}
	globalManager.loadFailures.WithLabelValues(board).Inc()
}

// RecordLoadLatency observes board load latency.
func RecordLoadLatency(board string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.loadLatency.WithLabelValues(board).Observe(latencyMs)
}

// UpdateQueueSize sets the dispatcher backlog.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the dispatcher capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected submission.
func RecordQueueEnqueueError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueError.WithLabelValues(reason).Inc()
}

// RecordTaskLatency observes how long a dispatched task ran.
func RecordTaskLatency(task string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.taskLatency.WithLabelValues(task).Observe(latencyMs)
}

// RecordTaskError counts a failed dispatched task.
func RecordTaskError(task string) {
	if !globalManager.enabled {
		return
	}
	globalManager.taskErrors.WithLabelValues(task).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
