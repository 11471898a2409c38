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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Uploads and scoring
	uploadsAccepted *prometheus.CounterVec
	uploadsRejected *prometheus.CounterVec
	uploadsDup      prometheus.Counter
	rowsScored      *prometheus.CounterVec
	rowsSkipped     *prometheus.CounterVec
	tableRows       *prometheus.GaugeVec
	scoringLatency  prometheus.Histogram
	scoringErrors   prometheus.Counter

	// Leaderboard
	leaderboardRefreshes prometheus.Counter
	leaderboardLatency   prometheus.Histogram
	leaderboardSize      prometheus.Gauge
	leaderboardErrors    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Errors and system
	errorsByComponent    *prometheus.CounterVec
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // singleton manager

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tom",
		subsystem:        "analytics",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.uploadsAccepted = m.counterVec("uploads_accepted_total", "Uploads accepted for scoring by metric", "metric")
	m.uploadsRejected = m.counterVec("uploads_rejected_total", "Uploads rejected by reason", "reason")
	m.uploadsDup = m.counter("uploads_duplicate_total", "Uploads ignored because they were already seen")
	m.rowsScored = m.counterVec("rows_scored_total", "Rows scored by metric", "metric")
	m.rowsSkipped = m.counterVec("rows_skipped_total", "Spreadsheet rows skipped during ingestion by reason", "reason")
	m.tableRows = m.gaugeVec("table_rows", "Rows in the latest scored table by metric", "metric")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Time to score one metric table")
	m.scoringErrors = m.counter("scoring_errors_total", "Metric tables rejected by the scoring engine")

	m.leaderboardRefreshes = m.counter("leaderboard_refreshes_total", "Leaderboard aggregation passes")
	m.leaderboardLatency = m.histogram("leaderboard_refresh_latency_milliseconds", "Time to aggregate the leaderboard")
	m.leaderboardSize = m.gauge("leaderboard_size", "Employees on the current leaderboard")
	m.leaderboardErrors = m.counter("leaderboard_errors_total", "Failed leaderboard aggregation passes")

	m.queueSize = m.gauge("queue_size", "Uploads waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Uploads enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Uploads dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Uploads refused by the queue")

	m.workerCount = m.gauge("worker_count", "Workers in the scoring pool")
	m.workerErrors = m.counter("worker_errors_total", "Uploads a worker failed to process")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one upload")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordUploadAccepted counts an upload accepted for metric.
func RecordUploadAccepted(metric string) { globalManager.uploadsAccepted.WithLabelValues(metric).Inc() }

// RecordUploadRejected counts an upload rejected for reason.
func RecordUploadRejected(reason string) { globalManager.uploadsRejected.WithLabelValues(reason).Inc() }

// RecordUploadDuplicate counts an upload ignored as a duplicate.
func RecordUploadDuplicate() { globalManager.uploadsDup.Inc() }

// RecordRowsScored adds n scored rows for metric.
func RecordRowsScored(metric string, n int) {
	globalManager.rowsScored.WithLabelValues(metric).Add(float64(n))
}

// RecordRowsSkipped adds n skipped ingestion rows for reason.
func RecordRowsSkipped(reason string, n int) {
	globalManager.rowsSkipped.WithLabelValues(reason).Add(float64(n))
}

// UpdateTableRows sets the row count of the latest table for metric.
func UpdateTableRows(metric string, n int) {
	globalManager.tableRows.WithLabelValues(metric).Set(float64(n))
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// RecordScoringError counts a rejected metric table.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// RecordLeaderboardRefresh counts an aggregation pass and its latency.
func RecordLeaderboardRefresh(latencyMs float64) {
	globalManager.leaderboardRefreshes.Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// UpdateLeaderboardSize sets the current leaderboard size.
func UpdateLeaderboardSize(n int) { globalManager.leaderboardSize.Set(float64(n)) }

// RecordLeaderboardError counts a failed aggregation pass.
func RecordLeaderboardError() { globalManager.leaderboardErrors.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// RecordQueueEnqueue counts an enqueued upload.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued upload.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts an upload the queue refused.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the worker pool size.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError counts a failed upload.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordWorkerProcessingLatency records the time spent on one upload.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry that holds the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
