// Package metrics provides Prometheus metrics for the heartline aggregation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the heartline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingress metrics - what arrives at the front door
	samplesIngested prometheus.Counter
	samplesRejected *prometheus.CounterVec

	// Aggregator metrics - open window bookkeeping
	activeSubjects  prometheus.Gauge
	activeWindows   prometheus.Gauge
	bufferedSamples prometheus.Gauge

	// Flush metrics - sweep cadence and results
	windowsFlushed     prometheus.Counter
	flushSweepDuration prometheus.Histogram
	flushSweepSkipped  prometheus.Counter

	// Flush pipeline metrics - bounded queue and workers
	flushQueueSize        prometheus.Gauge
	flushQueueCapacity    prometheus.Gauge
	flushQueueUtilization prometheus.Gauge
	flushQueueDropped     prometheus.Counter

	// Sink metrics - persistence outcomes
	sinkSaves       prometheus.Counter
	sinkErrors      prometheus.Counter
	sinkSaveLatency prometheus.Histogram

	// Broadcast metrics - live fan-out
	recordsPublished prometheus.Counter
	broadcastErrors  prometheus.Counter
	liveSubscribers  prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "heartline",
		subsystem:        "aggregator",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.samplesIngested = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_ingested_total",
		Help:      "Number of heartbeat samples accepted into open windows.",
	})
	m.samplesRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_rejected_total",
		Help:      "Number of samples rejected at ingress, by reason.",
	}, []string{"reason"})

	m.activeSubjects = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_subjects",
		Help:      "Subjects with at least one open window.",
	})
	m.activeWindows = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_windows",
		Help:      "Open windows across all subjects.",
	})
	m.bufferedSamples = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffered_samples",
		Help:      "Samples buffered in open windows awaiting flush.",
	})

	m.windowsFlushed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "windows_flushed_total",
		Help:      "Windows finalized and handed to the flush pipeline.",
	})
	m.flushSweepDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_sweep_duration_ms",
		Help:      "Duration of scheduler flush sweeps in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.flushSweepSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_sweep_skipped_total",
		Help:      "Scheduler ticks suppressed because the previous sweep was still running.",
	})

	m.flushQueueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_size",
		Help:      "Records waiting in the flush queue.",
	})
	m.flushQueueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_capacity",
		Help:      "Configured capacity of the flush queue.",
	})
	m.flushQueueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_utilization",
		Help:      "Flush queue fill ratio between 0 and 1.",
	})
	m.flushQueueDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_dropped_total",
		Help:      "Records dropped because the flush queue was full or closed.",
	})

	m.sinkSaves = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_saves_total",
		Help:      "Aggregated records written to the persistence sink.",
	})
	m.sinkErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Persistence sink failures (record is lost, flush is not rolled back).",
	})
	m.sinkSaveLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_save_latency_ms",
		Help:      "Latency of sink save calls in milliseconds.",
		Buckets:   m.histogramBuckets,
	})

	m.recordsPublished = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_published_total",
		Help:      "Aggregated records published to live subscribers.",
	})
	m.broadcastErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_errors_total",
		Help:      "Failed writes to live subscribers (subscriber is dropped).",
	})
	m.liveSubscribers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_subscribers",
		Help:      "Currently connected live subscribers across all subjects.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current heap allocation in bytes.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines.",
	})
}

// Package-level helpers operating on the global manager.

// RecordSampleIngested increments the accepted-sample counter.
func RecordSampleIngested() {
	globalManager.samplesIngested.Inc()
}

// RecordSampleRejected increments the rejected-sample counter for reason.
func RecordSampleRejected(reason string) {
	globalManager.samplesRejected.WithLabelValues(reason).Inc()
}

// UpdateActiveSubjects sets the open-subject gauge.
func UpdateActiveSubjects(count int) {
	globalManager.activeSubjects.Set(float64(count))
}

// UpdateActiveWindows sets the open-window gauge.
func UpdateActiveWindows(count int) {
	globalManager.activeWindows.Set(float64(count))
}

// UpdateBufferedSamples sets the buffered-sample gauge.
func UpdateBufferedSamples(count int) {
	globalManager.bufferedSamples.Set(float64(count))
}

// RecordWindowFlushed counts n windows handed to the flush pipeline.
func RecordWindowFlushed(n int) {
	globalManager.windowsFlushed.Add(float64(n))
}

// RecordFlushSweepDuration observes one scheduler sweep.
func RecordFlushSweepDuration(latencyMs float64) {
	globalManager.flushSweepDuration.Observe(latencyMs)
}

// RecordFlushSweepSkipped counts a tick suppressed by single-flight.
func RecordFlushSweepSkipped() {
	globalManager.flushSweepSkipped.Inc()
}

// UpdateFlushQueueSize sets the flush queue depth gauge.
func UpdateFlushQueueSize(size int) {
	globalManager.flushQueueSize.Set(float64(size))
}

// UpdateFlushQueueCapacity sets the flush queue capacity gauge.
func UpdateFlushQueueCapacity(capacity int) {
	globalManager.flushQueueCapacity.Set(float64(capacity))
}

// UpdateFlushQueueUtilization sets the flush queue fill ratio.
func UpdateFlushQueueUtilization(utilization float64) {
	globalManager.flushQueueUtilization.Set(utilization)
}

// RecordFlushQueueDropped counts a record dropped at enqueue.
func RecordFlushQueueDropped() {
	globalManager.flushQueueDropped.Inc()
}

// RecordSinkSave counts a successful sink write.
func RecordSinkSave() {
	globalManager.sinkSaves.Inc()
}

// RecordSinkError counts a sink failure.
func RecordSinkError() {
	globalManager.sinkErrors.Inc()
}

// RecordSinkSaveLatency observes one sink write.
func RecordSinkSaveLatency(latencyMs float64) {
	globalManager.sinkSaveLatency.Observe(latencyMs)
}

// RecordRecordPublished counts a record fanned out to subscribers.
func RecordRecordPublished() {
	globalManager.recordsPublished.Inc()
}

// RecordBroadcastError counts a failed subscriber write.
func RecordBroadcastError() {
	globalManager.broadcastErrors.Inc()
}

// UpdateLiveSubscribers sets the connected-subscriber gauge.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry exposes the custom registry for the /healthz handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
