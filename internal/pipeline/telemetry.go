package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the name used for OTEL instrumentation.
const instrumentationName = "github.com/Sujin1135/mangonaut/internal/pipeline"

// Metrics provides OpenTelemetry metrics for the pipeline.
type Metrics struct {
	processedTotal metric.Int64Counter
	failedTotal    metric.Int64Counter
	prCreatedTotal metric.Int64Counter
	duration       metric.Float64Histogram

	initialized bool
}

// NewMetrics creates pipeline metrics on the given meter. A nil meter
// uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{}
	var err error

	m.processedTotal, err = meter.Int64Counter(
		"pipeline.processed.total",
		metric.WithDescription("Total number of error alerts processed"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	m.failedTotal, err = meter.Int64Counter(
		"pipeline.failed.total",
		metric.WithDescription("Total number of error alerts whose processing failed"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	m.prCreatedTotal, err = meter.Int64Counter(
		"pipeline.pr.created.total",
		metric.WithDescription("Total number of pull requests created"),
		metric.WithUnit("{pr}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"pipeline.duration.seconds",
		metric.WithDescription("End-to-end processing duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordProcessed records a completed invocation.
func (m *Metrics) RecordProcessed(ctx context.Context, project string, prCreated bool, seconds float64) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(attribute.String("project", project))
	m.processedTotal.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
	if prCreated {
		m.prCreatedTotal.Add(ctx, 1, attrs)
	}
}

// RecordFailed records a failed invocation.
func (m *Metrics) RecordFailed(ctx context.Context, project, code string) {
	if m == nil || !m.initialized {
		return
	}
	m.failedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("project", project),
		attribute.String("error_code", code),
	))
}

// Tracer returns the pipeline tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
