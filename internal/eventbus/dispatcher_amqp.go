package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
)

// ErrPublishNacked is returned when the broker refuses a published message.
var ErrPublishNacked = errors.New("broker did not confirm message")

// confirmChannel publishes and waits for the broker confirmation.
type confirmChannel interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPDispatcher publishes messages to a topic exchange on a confirm-mode channel.
// The channel is reopened on the next dispatch after the broker closes it.
type AMQPDispatcher struct {
	mu       sync.Mutex
	open     func() (confirmChannel, error)
	ch       confirmChannel
	exchange string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAMQPDispatcher creates an AMQPDispatcher publishing to exchange over conn.
func NewAMQPDispatcher(conn *Connection, exchange string, timeout time.Duration, logger *slog.Logger) *AMQPDispatcher {
	open := func() (confirmChannel, error) {
		return openConfirmChannel(conn)
	}
	return newAMQPDispatcher(open, exchange, timeout, logger)
}

func newAMQPDispatcher(
	open func() (confirmChannel, error),
	exchange string,
	timeout time.Duration,
	logger *slog.Logger,
) *AMQPDispatcher {
	return &AMQPDispatcher{open: open, exchange: exchange, timeout: timeout, logger: logger}
}

// Dispatch publishes msg as a persistent JSON message keyed by its routing key and
// waits for the broker to confirm it.
func (d *AMQPDispatcher) Dispatch(ctx context.Context, msg outboxDomain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, err := d.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         msg.RoutingKey,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Payload,
	}
	if err := ch.Publish(ctx, d.exchange, msg.RoutingKey, publishing); err != nil {
		return fmt.Errorf("failed to publish message %s to %s: %w", msg.ID, d.exchange, err)
	}

	return nil
}

func (d *AMQPDispatcher) channel() (confirmChannel, error) {
	if d.ch != nil && !d.ch.IsClosed() {
		return d.ch, nil
	}

	ch, err := d.open()
	if err != nil {
		return nil, err
	}
	if d.ch != nil {
		d.logger.Info("publisher channel reopened", slog.String("exchange", d.exchange))
	}
	d.ch = ch
	return ch, nil
}

// Close closes the publishing channel.
func (d *AMQPDispatcher) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ch == nil || d.ch.IsClosed() {
		return nil
	}
	return d.ch.Close()
}

type amqpConfirmChannel struct {
	ch *amqp.Channel
}

func openConfirmChannel(conn *Connection) (confirmChannel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &amqpConfirmChannel{ch: ch}, nil
}

func (c *amqpConfirmChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	confirmation, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

func (c *amqpConfirmChannel) IsClosed() bool {
	return c.ch.IsClosed()
}

func (c *amqpConfirmChannel) Close() error {
	return c.ch.Close()
}
