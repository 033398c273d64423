package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openloom/openloom/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "loom"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Build starting")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("compiler")

	// Add context fields
	logger = logger.WithRunID("run-123").WithDevice("leaf11").WithRole("leaf")

	// Log at different levels
	logger.Debug("Resolving device context")
	logger.Info("Device configuration rendered")
	logger.Warn("Stored artifact differs from rendered output")

	// Log with error
	err := fmt.Errorf("vlan 30 not defined")
	logger.WithError(err).Error("Validation failed")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "build.execute")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("run.id", "run-789"),
		attribute.Int("build.targets", 5),
	)

	// Add event
	span.AddEvent("inventory.loaded")

	// Nested span
	ctx, childSpan := tel.Tracer.StartDeviceSpan(ctx, "leaf11", "leaf")
	defer childSpan.End()

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record build metrics
	tel.Metrics.RecordBuildStarted("build")

	// Simulate build execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordBuildCompleted("completed", duration)

	// Record per-device metrics
	tel.Metrics.RecordDeviceCompile(
		"leaf",              // role
		"updated",           // status
		25*time.Millisecond, // duration
	)

	// Record pipeline failures
	tel.Metrics.RecordValidationFailure("leaf")
	tel.Metrics.RecordError("render")

	// Record artifact output
	tel.Metrics.RecordArtifactWrite("leaf", 2048)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishBuildStarted("run-123", "build", 4)
	tel.Events.PublishDeviceCompiled("run-123", "leaf11", "leaf", "updated", 25*time.Millisecond)
	tel.Events.PublishBuildCompleted("run-123", "completed", 100*time.Millisecond)

	// Output varies, no output specified
}

// Example_buildInstrumentation demonstrates instrumenting a complete build.
func Example_buildInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start build context
	runID := "run-123"
	ctx = telemetry.WithBuildContext(ctx, runID, "build", 1)

	// Compile devices (simulated)
	compileDevice(ctx, runID)

	// End build context
	telemetry.EndBuildContext(ctx, runID, "completed", nil)

	fmt.Println("Build instrumentation complete")
	// Output: Build instrumentation complete
}

func compileDevice(ctx context.Context, runID string) {
	hostname := "leaf11"
	role := "leaf"

	ctx = telemetry.WithDeviceContext(ctx, runID, hostname, role)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Compiling device")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End device context
	telemetry.EndDeviceContext(ctx, runID, hostname, role, "updated", "", nil)
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "inventory.load",
		attribute.String("inventory.path", "inventory/devices.yaml"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Loading inventory")

	// Simulate loading
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Inventory load complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only drift events)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Drift event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeDriftDetected))

	// Publish various events
	tel.Events.PublishBuildStarted("run-123", "check", 4)    // Info - filtered by level filter
	tel.Events.PublishDriftDetected("leaf11", "modified")    // Warning - passes level filter
	tel.Events.PublishBuildFailed("run-123", "render error") // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "loom"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "loom"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "device.compile")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("interface Ethernet49 references undefined vlan 30")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("validate")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Device compile failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	inventoryLogger := tel.Logger.NewComponentLogger("inventory")
	compilerLogger := tel.Logger.NewComponentLogger("compiler")
	mirrorLogger := tel.Logger.NewComponentLogger("mirror")

	inventoryLogger.Info("Inventory loaded")
	compilerLogger.Info("Compiling selected devices")
	mirrorLogger.Info("Pushing artifacts to mirror host")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
