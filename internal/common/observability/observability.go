package observability

import (
	"context"
	"fmt"
	"time"

	"carepulse/internal/common/logger"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the otel meter and tracer used by persistence actions.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	actionCounter  otelmetric.Int64Counter
	actionDuration otelmetric.Float64Histogram
}

// New wires an otel prometheus exporter into reg and, when tracing is enabled,
// an in-process tracer provider whose trace ids are attached to log lines.
func New(serviceName string, reg prometheus.Registerer, tracing bool) (*Observability, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	actionCounter, err := meter.Int64Counter(
		"actions.processed",
		otelmetric.WithDescription("Number of persistence actions processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("create action counter: %w", err)
	}

	actionDuration, err := meter.Float64Histogram(
		"actions.duration",
		otelmetric.WithDescription("Persistence action duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create action histogram: %w", err)
	}

	o := &Observability{
		meterProvider:  provider,
		actionCounter:  actionCounter,
		actionDuration: actionDuration,
	}

	if tracing {
		o.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(o.tracerProvider)
		o.tracer = o.tracerProvider.Tracer(serviceName)
	} else {
		o.tracer = noop.NewTracerProvider().Tracer(serviceName)
	}

	return o, nil
}

// NewNoop returns an Observability that records nothing; used in tests.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// StartSpan opens a span for a persistence action.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordAction counts one action run and its duration.
func (o *Observability) RecordAction(ctx context.Context, action, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	)
	if o.actionCounter != nil {
		o.actionCounter.Add(ctx, 1, attrs)
	}
	if o.actionDuration != nil {
		o.actionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// WithTrace adds the active trace id to log, when ctx carries a sampled span.
func WithTrace(ctx context.Context, log logger.Logger) logger.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return log
	}
	return log.WithFields(map[string]interface{}{"traceId": sc.TraceID().String()})
}

func (o *Observability) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
