package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the loom compiler.
type Metrics struct {
	config MetricsConfig

	// Build metrics
	buildsStarted   *prometheus.CounterVec
	buildsCompleted *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec

	// Device compile metrics
	deviceCompiles        *prometheus.CounterVec
	deviceCompileDuration *prometheus.HistogramVec

	// Pipeline stage failure metrics
	resolveAmbiguities *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	policyViolations   *prometheus.CounterVec
	errorsByClass      *prometheus.CounterVec

	// Artifact metrics
	artifactBytes *prometheus.CounterVec
	driftChecks   *prometheus.CounterVec

	// Mirror metrics
	mirrorTransfers *prometheus.CounterVec

	// System metrics
	activeBuilds    prometheus.Gauge
	devicesSelected prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		buildsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_started_total",
				Help:      "Total number of builds started",
			},
			[]string{"mode"},
		),
		buildsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_completed_total",
				Help:      "Total number of builds completed",
			},
			[]string{"status"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of build execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		deviceCompiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_compiles_total",
				Help:      "Total number of per-device compiles by result status",
			},
			[]string{"role", "status"},
		),
		deviceCompileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "device_compile_duration_seconds",
				Help:      "Duration of per-device compiles in seconds",
				Buckets:   buckets,
			},
			[]string{"role"},
		),

		resolveAmbiguities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolve_ambiguities_total",
				Help:      "Total number of devices failed on ambiguous context",
			},
			[]string{"role"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of devices failed by role validation",
			},
			[]string{"role"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations reported",
			},
			[]string{"severity"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of compile errors by error class",
			},
			[]string{"class"},
		),

		artifactBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_bytes_written_total",
				Help:      "Total artifact bytes written to the store",
			},
			[]string{"role"},
		),
		driftChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_checks_total",
				Help:      "Total drift checks by verdict",
			},
			[]string{"kind"},
		),

		mirrorTransfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_transfers_total",
				Help:      "Total artifact mirror transfers",
			},
			[]string{"status"},
		),

		activeBuilds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_builds",
				Help:      "Current number of active builds",
			},
		),
		devicesSelected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "devices_selected",
				Help:      "Number of devices selected by the current build",
			},
		),
	}

	registry.MustRegister(
		m.buildsStarted,
		m.buildsCompleted,
		m.buildDuration,
		m.deviceCompiles,
		m.deviceCompileDuration,
		m.resolveAmbiguities,
		m.validationFailures,
		m.policyViolations,
		m.errorsByClass,
		m.artifactBytes,
		m.driftChecks,
		m.mirrorTransfers,
		m.activeBuilds,
		m.devicesSelected,
	)

	return m, nil
}

// Build Metrics

// RecordBuildStarted increments the counter for started builds.
func (m *Metrics) RecordBuildStarted(mode string) {
	if m.buildsStarted == nil {
		return
	}
	m.buildsStarted.WithLabelValues(mode).Inc()
	m.activeBuilds.Inc()
}

// RecordBuildCompleted records a completed build with its status and duration.
func (m *Metrics) RecordBuildCompleted(status string, duration time.Duration) {
	if m.buildsCompleted == nil {
		return
	}
	m.buildsCompleted.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeBuilds.Dec()
}

// SetDevicesSelected sets the size of the current target selection.
func (m *Metrics) SetDevicesSelected(count float64) {
	if m.devicesSelected == nil {
		return
	}
	m.devicesSelected.Set(count)
}

// Device Metrics

// RecordDeviceCompile records one per-device compile result.
func (m *Metrics) RecordDeviceCompile(role, status string, duration time.Duration) {
	if m.deviceCompiles == nil {
		return
	}
	m.deviceCompiles.WithLabelValues(role, status).Inc()
	m.deviceCompileDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// RecordAmbiguity records a device failed on ambiguous context.
func (m *Metrics) RecordAmbiguity(role string) {
	if m.resolveAmbiguities == nil {
		return
	}
	m.resolveAmbiguities.WithLabelValues(role).Inc()
}

// RecordValidationFailure records a device rejected by role validation.
func (m *Metrics) RecordValidationFailure(role string) {
	if m.validationFailures == nil {
		return
	}
	m.validationFailures.WithLabelValues(role).Inc()
}

// RecordPolicyViolation records one policy violation.
func (m *Metrics) RecordPolicyViolation(severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(severity).Inc()
}

// RecordError records a compile error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Artifact Metrics

// RecordArtifactWrite records artifact bytes written for a role.
func (m *Metrics) RecordArtifactWrite(role string, bytes int) {
	if m.artifactBytes == nil {
		return
	}
	m.artifactBytes.WithLabelValues(role).Add(float64(bytes))
}

// RecordDriftCheck records one drift verdict.
func (m *Metrics) RecordDriftCheck(kind string) {
	if m.driftChecks == nil {
		return
	}
	m.driftChecks.WithLabelValues(kind).Inc()
}

// Mirror Metrics

// RecordMirrorTransfer records one mirror transfer outcome.
func (m *Metrics) RecordMirrorTransfer(status string) {
	if m.mirrorTransfers == nil {
		return
	}
	m.mirrorTransfers.WithLabelValues(status).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
