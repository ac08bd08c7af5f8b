package usecase

import (
	"context"

	"github.com/almacen/catalog/internal/metrics"
	"github.com/almacen/catalog/internal/outbox/domain"
)

// dispatcherWithMetrics decorates a Dispatcher with publish counters.
type dispatcherWithMetrics struct {
	next    Dispatcher
	metrics metrics.MessagingMetrics
}

// NewDispatcherWithMetrics wraps dispatcher so every Dispatch is counted by
// routing key and status.
func NewDispatcherWithMetrics(dispatcher Dispatcher, m metrics.MessagingMetrics) Dispatcher {
	return &dispatcherWithMetrics{next: dispatcher, metrics: m}
}

func (d *dispatcherWithMetrics) Dispatch(ctx context.Context, msg domain.Message) error {
	err := d.next.Dispatch(ctx, msg)

	status := "success"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordDispatch(ctx, msg.RoutingKey, status)

	return err
}
