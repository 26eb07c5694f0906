// Package metrics provides Prometheus metrics for confsnap
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for confsnap. A nil *Metrics records
// nothing, so callers never need to check.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Backup metrics
	BackupRunsTotal    prometheus.Counter
	DeviceResultsTotal *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	ChangedLinesTotal  *prometheus.CounterVec
	LastRunTimestamp   prometheus.Gauge

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	CacheRequestsTotal     *prometheus.CounterVec

	ServerStartTime time.Time
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}
	f := promauto.With(reg)

	// gRPC request metrics
	m.GrpcRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsnap_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confsnap_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsnap_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Backup metrics
	m.BackupRunsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "confsnap_backup_runs_total",
			Help: "Total number of backup runs",
		},
	)

	m.DeviceResultsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsnap_device_results_total",
			Help: "Per-device backup outcomes by status",
		},
		[]string{"status"},
	)

	m.FetchDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "confsnap_fetch_duration_seconds",
			Help:    "Duration of device configuration fetches in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.ChangedLinesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsnap_changed_lines_total",
			Help: "Lines inserted or deleted between consecutive snapshots",
		},
		[]string{"op"},
	)

	m.LastRunTimestamp = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsnap_last_backup_run_timestamp_seconds",
			Help: "Unix time the last backup run finished",
		},
	)

	// Store metrics
	m.StoreOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsnap_store_operations_total",
			Help: "Total number of snapshot store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confsnap_store_operation_duration_seconds",
			Help:    "Duration of snapshot store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.CacheRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsnap_cache_requests_total",
			Help: "Snapshot content cache lookups by result",
		},
		[]string{"result"},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "confsnap_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// GrpcStarted tracks an in-flight request; call the returned func when done
func (m *Metrics) GrpcStarted() func() {
	if m == nil {
		return func() {}
	}
	m.GrpcRequestsInFlight.Inc()
	return m.GrpcRequestsInFlight.Dec
}

// RecordStoreOperation records a snapshot store operation
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFetch records a device fetch duration
func (m *Metrics) RecordFetch(duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(duration.Seconds())
}

// RecordDeviceResult counts one device outcome
func (m *Metrics) RecordDeviceResult(status string) {
	if m == nil {
		return
	}
	m.DeviceResultsTotal.WithLabelValues(status).Inc()
}

// RecordChangedLines adds inserted and deleted line counts
func (m *Metrics) RecordChangedLines(inserted, deleted int) {
	if m == nil {
		return
	}
	m.ChangedLinesTotal.WithLabelValues("insert").Add(float64(inserted))
	m.ChangedLinesTotal.WithLabelValues("delete").Add(float64(deleted))
}

// RecordRun records a finished backup run
func (m *Metrics) RecordRun(finished time.Time) {
	if m == nil {
		return
	}
	m.BackupRunsTotal.Inc()
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// RecordCache records a content cache lookup
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}
