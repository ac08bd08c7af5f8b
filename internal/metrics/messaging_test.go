package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingMetrics(t *testing.T) {
	provider, err := NewProvider("catalog_test")
	require.NoError(t, err)

	mm, err := NewMessagingMetrics(provider.MeterProvider(), "catalog_test")
	require.NoError(t, err)

	ctx := context.Background()
	queue := "catalog.q.sales-purchase-confirmed"
	mm.RecordDelivery(ctx, queue, DeliveryAcked, 5*time.Millisecond)
	mm.RecordDelivery(ctx, queue, DeliveryAcked, 7*time.Millisecond)
	mm.RecordDelivery(ctx, queue, DeliveryRequeued, time.Second)
	mm.RecordDelivery(ctx, queue, DeliveryDeadLetter, time.Millisecond)
	mm.RecordDispatch(ctx, "catalog.stock.rejected", "success")
	mm.RecordDispatch(ctx, "catalog.stock.rejected", "error")

	output := scrape(t, provider)

	assertMetricLine(t, output, `catalog_test_deliveries_total`,
		`queue="catalog.q.sales-purchase-confirmed".*result="acked"`, `2`)
	assertMetricLine(t, output, `catalog_test_deliveries_total`, `result="requeued"`, `1`)
	assertMetricLine(t, output, `catalog_test_deliveries_total`, `result="dead_lettered"`, `1`)
	assertMetricLine(t, output, `catalog_test_delivery_handling_seconds_count`, `result="acked"`, `2`)
	assertMetricLine(t, output, `catalog_test_dispatches_total`,
		`routing_key="catalog.stock.rejected".*status="error"`, `1`)
}

func TestNoOpMessagingMetrics(t *testing.T) {
	noOp := NewNoOpMessagingMetrics()

	assert.NotPanics(t, func() {
		noOp.RecordDelivery(context.Background(), "q", DeliveryAcked, time.Millisecond)
		noOp.RecordDispatch(context.Background(), "k", "success")
	})
}
