package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the roster service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Jobs
	jobsSubmitted prometheus.Counter
	jobsDuplicate prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsStored    prometheus.Gauge

	// Resolution
	recordsResolved   prometheus.Counter
	identityRewrites  *prometheus.CounterVec
	diagnostics       *prometheus.CounterVec
	resolutionLatency prometheus.Histogram

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roster",
		subsystem:        "resolver",
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.jobsSubmitted = m.counter("jobs_submitted_total", "Total number of resolution jobs accepted")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Total number of submissions rejected as duplicates")
	m.jobsCompleted = m.counter("jobs_completed_total", "Total number of resolution jobs completed")
	m.jobsFailed = m.counter("jobs_failed_total", "Total number of resolution jobs that failed")
	m.jobsStored = m.gauge("jobs_stored", "Number of jobs currently held by the job store")

	m.recordsResolved = m.counter("records_resolved_total", "Total number of score records passed through the engine")
	m.identityRewrites = m.counterVec("identity_rewrites_total",
		"Records rewritten to a canonical identity by pass", "pass")
	m.diagnostics = m.counterVec("diagnostics_total", "Diagnostics emitted by kind", "kind")
	m.resolutionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "resolution_latency_milliseconds",
		Help:      "Histogram of engine run latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = m.gauge("queue_size", "Current number of queued jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActive = m.gauge("worker_active_count", "Number of workers currently resolving a job")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordJobSubmitted increments the accepted jobs counter.
func RecordJobSubmitted() { globalManager.jobsSubmitted.Inc() }

// RecordJobDuplicate increments the duplicate submissions counter.
func RecordJobDuplicate() { globalManager.jobsDuplicate.Inc() }

// RecordJobCompleted increments the completed jobs counter.
func RecordJobCompleted() { globalManager.jobsCompleted.Inc() }

// RecordJobFailed increments the failed jobs counter.
func RecordJobFailed() { globalManager.jobsFailed.Inc() }

// UpdateJobsStored sets the number of jobs in the store.
func UpdateJobsStored(count int) { globalManager.jobsStored.Set(float64(count)) }

// RecordRecordsResolved adds n to the resolved records counter.
func RecordRecordsResolved(n int) { globalManager.recordsResolved.Add(float64(n)) }

// RecordIdentityRewrites adds n rewrites for the named identity pass.
func RecordIdentityRewrites(pass string, n int) {
	if n > 0 {
		globalManager.identityRewrites.WithLabelValues(pass).Add(float64(n))
	}
}

// RecordDiagnostics adds n diagnostics of the given kind.
func RecordDiagnostics(kind string, n int) {
	if n > 0 {
		globalManager.diagnostics.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordResolutionLatency records one engine run in milliseconds.
func RecordResolutionLatency(latencyMs float64) { globalManager.resolutionLatency.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// IncWorkerActive marks one more worker as busy.
func IncWorkerActive() { globalManager.workerActive.Inc() }

// DecWorkerActive marks one worker as idle again.
func DecWorkerActive() { globalManager.workerActive.Dec() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
