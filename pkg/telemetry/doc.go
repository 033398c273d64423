// Package telemetry provides observability instrumentation for loom builds.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging fabric compilation runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for the run ledger and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "loom"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("compiler")
//	logger = logger.WithRunID("run-123").WithDevice("leaf11").WithRole("leaf")
//	logger.Info("Compiling device configuration")
//	logger.WithError(err).Error("Compilation failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// Components that take a bare zerolog.Logger (the inventory loader, the file
// watcher) can be fed from the same sink via tel.Logger.Zerolog().
//
// # Distributed Tracing
//
// Tracing provides visibility into the per-device compile pipeline:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("device.hostname", hostname),
//	    attribute.String("device.role", role),
//	)
//
//	// Record events
//	span.AddEvent("resolve.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), None (testing)
//
// # Metrics
//
// Prometheus metrics track build behavior and performance:
//
//	// Record build execution
//	tel.Metrics.RecordBuildStarted("build")
//	tel.Metrics.RecordBuildCompleted("completed", duration)
//
//	// Record per-device outcomes
//	tel.Metrics.RecordDeviceCompile("leaf", "updated", duration)
//
//	// Record pipeline failures
//	tel.Metrics.RecordValidationFailure("leaf")
//	tel.Metrics.RecordError("render")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishBuildStarted(runID, "build", len(targets))
//	tel.Events.PublishDeviceCompiled(runID, hostname, role, status, duration)
//	tel.Events.PublishDriftDetected(hostname, "modified")
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByHostname
//
// Subscribers are invoked synchronously in publish order, so a subscriber
// that persists events to the run ledger sees them in the order they
// occurred.
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "artifact.write",
//	    attribute.String("device.hostname", hostname))
//	defer ic.End(err)
//
//	ic.Logger.Info("Writing artifact")
//
//	// Build context
//	ctx = telemetry.WithBuildContext(ctx, runID, mode, len(targets))
//	defer telemetry.EndBuildContext(ctx, runID, status, err)
//
//	// Device context
//	ctx = telemetry.WithDeviceContext(ctx, runID, hostname, role)
//	defer telemetry.EndDeviceContext(ctx, runID, hostname, role, status, class, err)
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "loom",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - loom_builds_started_total{mode}
//   - loom_builds_completed_total{status}
//   - loom_build_duration_seconds{status}
//   - loom_device_compiles_total{role,status}
//   - loom_device_compile_duration_seconds{role}
//   - loom_resolve_ambiguities_total{role}
//   - loom_validation_failures_total{role}
//   - loom_policy_violations_total{severity}
//   - loom_errors_by_class_total{class}
//   - loom_artifact_bytes_written_total{role}
//   - loom_drift_checks_total{kind}
//   - loom_mirror_transfers_total{status}
//   - loom_active_builds
//   - loom_devices_selected
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered events are delivered and all pending traces are
// exported before the process exits.
package telemetry
