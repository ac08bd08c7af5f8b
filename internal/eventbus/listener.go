package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	apperrors "github.com/almacen/catalog/internal/errors"
	"github.com/almacen/catalog/internal/metrics"
)

// ErrDeliveriesClosed is returned when the broker closes the delivery stream while
// the listener is still expected to run.
var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// Handler processes one message body. A nil error acknowledges the delivery;
// transient errors requeue it and any other error dead-letters it.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// ListenerConfig holds listener configuration.
type ListenerConfig struct {
	Queue          string
	ConsumerTag    string
	Prefetch       int
	Workers        int
	HandlerTimeout time.Duration
}

// Listener consumes a queue with manual acknowledgement and a fixed worker pool.
type Listener struct {
	config  ListenerConfig
	handler Handler
	metrics metrics.MessagingMetrics
	logger  *slog.Logger
}

// ListenerOption customizes a Listener.
type ListenerOption func(*Listener)

// WithListenerMetrics records every settled delivery on m.
func WithListenerMetrics(m metrics.MessagingMetrics) ListenerOption {
	return func(l *Listener) {
		l.metrics = m
	}
}

// NewListener creates a new Listener.
func NewListener(config ListenerConfig, handler Handler, logger *slog.Logger, opts ...ListenerOption) *Listener {
	if config.Workers < 1 {
		config.Workers = 1
	}
	l := &Listener{
		config:  config,
		handler: handler,
		metrics: metrics.NewNoOpMessagingMetrics(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen consumes from the configured queue until ctx is cancelled. Cancellation
// stops the consumer, lets in-flight deliveries finish and returns nil. Unacked
// prefetched deliveries return to the queue when the channel closes.
func (l *Listener) Listen(ctx context.Context, conn *Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	if err := ch.Qos(l.config.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(l.config.Queue, l.config.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", l.config.Queue, err)
	}

	stop := context.AfterFunc(ctx, func() {
		if err := ch.Cancel(l.config.ConsumerTag, false); err != nil {
			l.logger.Warn("failed to cancel consumer", slog.Any("error", err))
		}
	})
	defer stop()

	l.logger.Info("listening for deliveries",
		slog.String("queue", l.config.Queue),
		slog.Int("prefetch", l.config.Prefetch),
		slog.Int("workers", l.config.Workers),
	)

	return l.Run(ctx, deliveries)
}

// Run dispatches deliveries to the worker pool and blocks until every worker has
// returned.
func (l *Listener) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var wg sync.WaitGroup
	for i := 0; i < l.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.work(ctx, deliveries)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		l.logger.Info("listener stopped", slog.String("queue", l.config.Queue))
		return nil
	}
	return ErrDeliveriesClosed
}

func (l *Listener) work(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			l.handle(ctx, delivery)
		}
	}
}

// handle runs the handler detached from ctx so shutdown never interrupts a
// transaction halfway; HandlerTimeout still bounds it.
func (l *Listener) handle(ctx context.Context, delivery amqp.Delivery) {
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.config.HandlerTimeout)
	defer cancel()

	start := time.Now()
	err := l.handler.Handle(handlerCtx, delivery.Body)

	var ackErr error
	result := metrics.DeliveryAcked
	switch {
	case err == nil:
		ackErr = delivery.Ack(false)
	case shouldRequeue(err):
		result = metrics.DeliveryRequeued
		l.logger.Warn("delivery requeued",
			slog.String("message_id", delivery.MessageId),
			slog.Any("error", err),
		)
		ackErr = delivery.Nack(false, true)
	default:
		result = metrics.DeliveryDeadLetter
		l.logger.Error("delivery dead-lettered",
			slog.String("message_id", delivery.MessageId),
			slog.Any("error", err),
		)
		ackErr = delivery.Nack(false, false)
	}
	l.metrics.RecordDelivery(handlerCtx, l.config.Queue, result, time.Since(start))

	if ackErr != nil {
		l.logger.Error("failed to acknowledge delivery",
			slog.String("message_id", delivery.MessageId),
			slog.Any("error", ackErr),
		)
	}
}

func shouldRequeue(err error) bool {
	return apperrors.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}
