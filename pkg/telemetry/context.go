package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging,
// tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext bundles the context, span, logger, and timer of
// one instrumented operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// buildSpanKey is the context key for build spans.
type buildSpanKey struct{}

// buildTimerKey is the context key for build timers.
type buildTimerKey struct{}

// WithBuildContext creates a context enriched with build-run telemetry:
// a span, run-scoped logger fields, a started metric, and an event.
func WithBuildContext(ctx context.Context, runID, mode string, targets int) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartBuildSpan(ctx, runID, mode)

	logger := tel.Logger.WithRunID(runID).WithField("mode", mode)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordBuildStarted(mode)
	tel.Metrics.SetDevicesSelected(float64(targets))
	_ = tel.Events.PublishBuildStarted(runID, mode, targets)

	spanCtx = context.WithValue(spanCtx, buildSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, buildTimerKey{}, NewTimer())

	return spanCtx
}

// EndBuildContext completes the build context, recording metrics and events.
func EndBuildContext(ctx context.Context, runID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(buildSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrRunStatus.String(status))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(buildTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordBuildCompleted(status, duration)

	if err != nil {
		_ = tel.Events.PublishBuildFailed(runID, err.Error())
	} else {
		_ = tel.Events.PublishBuildCompleted(runID, status, duration)
	}
}

// deviceSpanKey is the context key for device spans.
type deviceSpanKey struct{}

// deviceTimerKey is the context key for device timers.
type deviceTimerKey struct{}

// WithDeviceContext creates a context enriched with per-device compile
// telemetry.
func WithDeviceContext(ctx context.Context, runID, hostname, role string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartDeviceSpan(ctx, hostname, role)

	logger := tel.Logger.
		WithRunID(runID).
		WithDevice(hostname).
		WithRole(role)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, deviceSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, deviceTimerKey{}, NewTimer())

	return spanCtx
}

// EndDeviceContext completes the device context, recording the compile
// result. class names the failed pipeline stage and is ignored when err
// is nil.
func EndDeviceContext(ctx context.Context, runID, hostname, role, status, class string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(deviceSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrStatus.String(status))
		if err != nil {
			span.SetAttributes(AttrErrorClass.String(class))
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(deviceTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordDeviceCompile(role, status, duration)

	if err != nil {
		tel.Metrics.RecordError(class)
		_ = tel.Events.PublishDeviceFailed(runID, hostname, role, class, err.Error())
	} else {
		_ = tel.Events.PublishDeviceCompiled(runID, hostname, role, status, duration)
	}
}
