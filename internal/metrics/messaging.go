package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Delivery results reported by the listener.
const (
	DeliveryAcked      = "acked"
	DeliveryRequeued   = "requeued"
	DeliveryDeadLetter = "dead_lettered"
)

// MessagingMetrics records broker traffic.
type MessagingMetrics interface {
	// RecordDelivery records one consumed delivery and how it was settled.
	RecordDelivery(ctx context.Context, queue, result string, duration time.Duration)

	// RecordDispatch records one outbound publish attempt.
	RecordDispatch(ctx context.Context, routingKey, status string)
}

type messagingMetrics struct {
	deliveries       metric.Int64Counter
	deliveryDuration metric.Float64Histogram
	dispatches       metric.Int64Counter
}

// NewMessagingMetrics creates MessagingMetrics backed by meterProvider.
func NewMessagingMetrics(meterProvider metric.MeterProvider, namespace string) (MessagingMetrics, error) {
	meter := meterProvider.Meter(namespace)

	deliveries, err := meter.Int64Counter(
		metricName(namespace, "deliveries_total"),
		metric.WithDescription("Consumed deliveries by queue and settlement"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery counter: %w", err)
	}

	deliveryDuration, err := meter.Float64Histogram(
		metricName(namespace, "delivery_handling_seconds"),
		metric.WithDescription("Time spent handling a delivery before settling it"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery histogram: %w", err)
	}

	dispatches, err := meter.Int64Counter(
		metricName(namespace, "dispatches_total"),
		metric.WithDescription("Outbound publishes by routing key and status"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}

	return &messagingMetrics{
		deliveries:       deliveries,
		deliveryDuration: deliveryDuration,
		dispatches:       dispatches,
	}, nil
}

func (m *messagingMetrics) RecordDelivery(ctx context.Context, queue, result string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("result", result),
	)
	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *messagingMetrics) RecordDispatch(ctx context.Context, routingKey, status string) {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("routing_key", routingKey),
		attribute.String("status", status),
	))
}

// NoOpMessagingMetrics discards everything.
type NoOpMessagingMetrics struct{}

// NewNoOpMessagingMetrics creates a no-op MessagingMetrics.
func NewNoOpMessagingMetrics() MessagingMetrics {
	return &NoOpMessagingMetrics{}
}

func (n *NoOpMessagingMetrics) RecordDelivery(context.Context, string, string, time.Duration) {}

func (n *NoOpMessagingMetrics) RecordDispatch(context.Context, string, string) {}
