package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records use case level operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation. Status is "success", "error" or an
	// outcome kind such as "accepted".
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records how long one operation took.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordRejection counts a purchase rejected with reasonCode.
	RecordRejection(ctx context.Context, reasonCode string)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
	rejections metric.Int64Counter
}

// NewBusinessMetrics creates BusinessMetrics backed by meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operations, err := meter.Int64Counter(
		metricName(namespace, "operations_total"),
		metric.WithDescription("Business operations by domain, operation and status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durations, err := meter.Float64Histogram(
		metricName(namespace, "operation_duration_seconds"),
		metric.WithDescription("Business operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	rejections, err := meter.Int64Counter(
		metricName(namespace, "stock_rejections_total"),
		metric.WithDescription("Purchases rejected by reason code"),
		metric.WithUnit("{purchase}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejection counter: %w", err)
	}

	return &businessMetrics{
		operations: operations,
		durations:  durations,
		rejections: rejections,
	}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, metric.WithAttributes(operationAttrs(domain, operation, status)...))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), metric.WithAttributes(operationAttrs(domain, operation, status)...))
}

func (b *businessMetrics) RecordRejection(ctx context.Context, reasonCode string) {
	b.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason_code", reasonCode)))
}

func operationAttrs(domain, operation, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	}
}

// NoOpBusinessMetrics discards everything. Used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (n *NoOpBusinessMetrics) RecordRejection(context.Context, string) {}
