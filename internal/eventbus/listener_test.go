package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/almacen/catalog/internal/errors"
	"github.com/almacen/catalog/internal/metrics"
)

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) byTag() map[uint64]ackRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]ackRecord, len(f.records))
	for _, r := range f.records {
		out[r.tag] = r
	}
	return out
}

type handlerFunc func(ctx context.Context, body []byte) error

func (f handlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }

func testListener(handler Handler, workers int) *Listener {
	return NewListener(ListenerConfig{
		Queue:          "catalog.q.sales-purchase-confirmed",
		ConsumerTag:    "catalog-stock",
		Workers:        workers,
		HandlerTimeout: time.Second,
	}, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListener_Run_AckPolicy(t *testing.T) {
	defer goleak.VerifyNone(t)

	handler := handlerFunc(func(ctx context.Context, body []byte) error {
		switch string(body) {
		case "ok":
			return nil
		case "transient":
			return apperrors.Wrap(apperrors.ErrUnavailable, "lock wait timeout")
		case "timeout":
			return context.DeadlineExceeded
		default:
			return errors.New("malformed message body")
		}
	})

	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 4)
	for tag, body := range []string{"ok", "transient", "timeout", "garbage"} {
		deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: uint64(tag + 1), Body: []byte(body)}
	}
	close(deliveries)

	err := testListener(handler, 2).Run(context.Background(), deliveries)

	assert.ErrorIs(t, err, ErrDeliveriesClosed)
	records := ack.byTag()
	require.Len(t, records, 4)
	assert.Equal(t, ackRecord{tag: 1, acked: true}, records[1])
	assert.Equal(t, ackRecord{tag: 2, requeue: true}, records[2])
	assert.Equal(t, ackRecord{tag: 3, requeue: true}, records[3])
	assert.Equal(t, ackRecord{tag: 4}, records[4])
}

func TestListener_Run_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery)

	done := make(chan error, 1)
	go func() {
		done <- testListener(handlerFunc(func(context.Context, []byte) error { return nil }), 3).Run(ctx, deliveries)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_Run_InFlightSurvivesCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr error

	handler := handlerFunc(func(ctx context.Context, body []byte) error {
		close(started)
		<-release
		handlerErr = ctx.Err()
		return nil
	})

	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("ok")}

	done := make(chan error, 1)
	go func() {
		done <- testListener(handler, 1).Run(ctx, deliveries)
	}()

	<-started
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.NoError(t, handlerErr)
	assert.Equal(t, ackRecord{tag: 1, acked: true}, ack.byTag()[1])
}

func TestNewListener_DefaultsWorkers(t *testing.T) {
	l := NewListener(ListenerConfig{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, 1, l.config.Workers)
}

type deliveryCall struct {
	queue  string
	result string
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []deliveryCall
}

func (r *recordingMetrics) RecordDelivery(_ context.Context, queue, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deliveryCall{queue: queue, result: result})
}

func (r *recordingMetrics) RecordDispatch(context.Context, string, string) {}

func TestListener_RecordsDeliveryResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	recorder := &recordingMetrics{}
	handler := handlerFunc(func(ctx context.Context, body []byte) error {
		if string(body) == "bad" {
			return errors.New("malformed message body")
		}
		return nil
	})
	l := NewListener(ListenerConfig{
		Queue:          "catalog.q.sales-purchase-confirmed",
		Workers:        1,
		HandlerTimeout: time.Second,
	}, handler, slog.New(slog.NewTextHandler(io.Discard, nil)), WithListenerMetrics(recorder))

	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("ok")}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("bad")}
	close(deliveries)

	assert.ErrorIs(t, l.Run(context.Background(), deliveries), ErrDeliveriesClosed)
	assert.Equal(t, []deliveryCall{
		{queue: "catalog.q.sales-purchase-confirmed", result: metrics.DeliveryAcked},
		{queue: "catalog.q.sales-purchase-confirmed", result: metrics.DeliveryDeadLetter},
	}, recorder.calls)
}
