// Package monitoring provides Prometheus metrics for the collector's
// persistence pipeline: WAL durability, sink flushes, retention sweeps,
// and archive packaging.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAppended tracks the total number of market events appended to
	// the orchestrator, by event type and outcome.
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_events_appended_total",
		Help: "Total number of market events appended",
	}, []string{"event_type", "status"})

	// AppendLatency tracks append (WAL write) latency.
	AppendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mdc_append_duration_seconds",
		Help:    "Append latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to 1.6s
	}, []string{"status"})

	// EventSize tracks the serialized size of market events in bytes.
	EventSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mdc_event_size_bytes",
		Help:    "Size of serialized market events in bytes",
		Buckets: prometheus.ExponentialBuckets(50, 2, 15), // 50B to ~800KB
	})

	// WALSize tracks the current WAL size in bytes.
	WALSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdc_wal_size_bytes",
		Help: "Current WAL size in bytes",
	})

	// WALSegments tracks the current number of WAL segments.
	WALSegments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdc_wal_segments_total",
		Help: "Number of WAL segments",
	})

	// WALCorruptions tracks the total number of detected WAL corruptions.
	WALCorruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdc_wal_corruptions_total",
		Help: "Total number of WAL corruptions detected",
	})

	// WALRecoveries tracks the total number of WAL recovery attempts by
	// outcome.
	WALRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_wal_recoveries_total",
		Help: "Total number of WAL recovery attempts",
	}, []string{"status"})

	// SinkFlushes tracks the total number of sink flush operations by sink
	// kind and outcome.
	SinkFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_sink_flushes_total",
		Help: "Total number of sink flush operations",
	}, []string{"sink", "status"})

	// SinkFlushLatency tracks sink flush latency.
	SinkFlushLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mdc_sink_flush_duration_seconds",
		Help:    "Sink flush latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"sink"})

	// SinkBytesWritten tracks bytes written to a sink's underlying storage.
	SinkBytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_sink_bytes_written_total",
		Help: "Total bytes written to sink storage",
	}, []string{"sink"})

	// RetentionFilesRemoved tracks files removed by the retention sweep.
	RetentionFilesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_retention_files_removed_total",
		Help: "Total number of files removed by retention sweeps",
	}, []string{"reason"})

	// RetentionBytesFreed tracks bytes reclaimed by the retention sweep.
	RetentionBytesFreed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdc_retention_bytes_freed_total",
		Help: "Total bytes freed by retention sweeps",
	})

	// ArchivePackages tracks portable archive package operations.
	ArchivePackages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_archive_packages_total",
		Help: "Total number of archive package operations",
	}, []string{"operation", "status"})

	// RetryAttempts tracks the total number of retry attempts.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_retry_attempts_total",
		Help: "Total number of retry attempts",
	}, []string{"operation", "status"})

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open,
	// 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mdc_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"breaker"})

	// CircuitBreakerTrips tracks the total number of circuit breaker trips.
	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mdc_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips",
	}, []string{"breaker"})

	// IntegrityScore tracks the current WAL integrity score (0-100),
	// derived from VerifyIntegrityReport's valid/total record ratio.
	IntegrityScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdc_integrity_score",
		Help: "Current WAL integrity score (0-100)",
	})

	// ErrorRate tracks the current error rate by component.
	ErrorRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mdc_error_rate",
		Help: "Current error rate",
	}, []string{"component"})

	// ThroughputRate tracks current ingest throughput in events per second.
	ThroughputRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mdc_throughput_events_per_second",
		Help: "Current throughput in events per second",
	})

	// QueueDepth tracks the orchestrator's pending (unflushed) buffer
	// depth.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mdc_queue_depth",
		Help: "Current queue depth",
	}, []string{"queue"})
)

// RecordAppend records an append outcome for one event type.
func RecordAppend(eventType string, success bool) {
	EventsAppended.WithLabelValues(eventType, statusLabel(success)).Inc()
}

// RecordAppendLatency records append latency.
func RecordAppendLatency(duration time.Duration, success bool) {
	AppendLatency.WithLabelValues(statusLabel(success)).Observe(duration.Seconds())
}

// RecordEventSize records event size.
func RecordEventSize(size int) {
	EventSize.Observe(float64(size))
}

// UpdateWALMetrics updates WAL size/segment gauges.
func UpdateWALMetrics(size int64, segments int) {
	WALSize.Set(float64(size))
	WALSegments.Set(float64(segments))
}

// RecordWALCorruption records a WAL corruption.
func RecordWALCorruption() {
	WALCorruptions.Inc()
}

// RecordWALRecovery records a WAL recovery attempt.
func RecordWALRecovery(success bool) {
	WALRecoveries.WithLabelValues(statusLabel(success)).Inc()
}

// RecordSinkFlush records a sink flush outcome and its latency.
func RecordSinkFlush(sink string, duration time.Duration, success bool) {
	SinkFlushes.WithLabelValues(sink, statusLabel(success)).Inc()
	SinkFlushLatency.WithLabelValues(sink).Observe(duration.Seconds())
}

// RecordSinkBytesWritten adds to a sink's cumulative bytes-written counter.
func RecordSinkBytesWritten(sink string, bytes int64) {
	SinkBytesWritten.WithLabelValues(sink).Add(float64(bytes))
}

// RecordRetentionSweep records the outcome of one retention sweep.
func RecordRetentionSweep(reason string, filesRemoved int, bytesFreed int64) {
	RetentionFilesRemoved.WithLabelValues(reason).Add(float64(filesRemoved))
	RetentionBytesFreed.Add(float64(bytesFreed))
}

// RecordArchivePackage records an archive package/verify/extract operation.
func RecordArchivePackage(operation string, success bool) {
	ArchivePackages.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordRetry records a retry attempt.
func RecordRetry(operation string, success bool) {
	RetryAttempts.WithLabelValues(operation, statusLabel(success)).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state.
func UpdateCircuitBreakerState(breaker string, state int) {
	CircuitBreakerState.WithLabelValues(breaker).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip.
func RecordCircuitBreakerTrip(breaker string) {
	CircuitBreakerTrips.WithLabelValues(breaker).Inc()
}

// UpdateIntegrityScore updates the integrity score.
func UpdateIntegrityScore(score float64) {
	IntegrityScore.Set(score)
}

// UpdateErrorRate updates the error rate for a component.
func UpdateErrorRate(component string, rate float64) {
	ErrorRate.WithLabelValues(component).Set(rate)
}

// UpdateThroughput updates the throughput rate.
func UpdateThroughput(eventsPerSecond float64) {
	ThroughputRate.Set(eventsPerSecond)
}

// UpdateQueueDepth updates queue depth.
func UpdateQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
