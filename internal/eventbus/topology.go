package eventbus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchanges and queues the service relies on.
type Topology struct {
	// SalesExchange is the topic exchange purchase confirmations arrive on.
	SalesExchange string
	// CatalogExchange is the topic exchange catalog events are published to.
	CatalogExchange string
	// PurchaseQueue is the durable queue the listener consumes.
	PurchaseQueue string
	// PurchaseRoutingKey binds PurchaseQueue to SalesExchange.
	PurchaseRoutingKey string
	// RatingExchange is the topic exchange the rating service publishes to.
	RatingExchange string
	// RatingQueue is the durable queue of rating updates. Empty disables it.
	RatingQueue string
	// RatingRoutingKey binds RatingQueue to RatingExchange.
	RatingRoutingKey string
	// DeadLetterExchange receives deliveries rejected without requeue.
	DeadLetterExchange string
}

// DeadLetterQueue is the queue bound to the dead letter exchange. Every consumed
// queue dead-letters into it.
func (t Topology) DeadLetterQueue() string {
	return t.PurchaseQueue + ".dlq"
}

// Declarer is the subset of *amqp.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

type exchangeSpec struct {
	name string
	kind string
}

// DeclareTopology idempotently declares every exchange, queue and binding.
// Declarations must match existing broker objects or the broker closes the channel.
func DeclareTopology(ch Declarer, t Topology) error {
	exchanges := []exchangeSpec{
		{t.SalesExchange, amqp.ExchangeTopic},
		{t.CatalogExchange, amqp.ExchangeTopic},
		{t.DeadLetterExchange, amqp.ExchangeFanout},
	}
	if t.RatingQueue != "" {
		exchanges = append(exchanges, exchangeSpec{t.RatingExchange, amqp.ExchangeTopic})
	}
	for _, exchange := range exchanges {
		if err := ch.ExchangeDeclare(exchange.name, exchange.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange.name, err)
		}
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", t.DeadLetterQueue(), err)
	}
	if err := ch.QueueBind(t.DeadLetterQueue(), "", t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", t.DeadLetterQueue(), err)
	}

	err := declareConsumedQueue(ch, t.PurchaseQueue, t.PurchaseRoutingKey, t.SalesExchange, t.DeadLetterExchange)
	if err != nil {
		return err
	}
	if t.RatingQueue == "" {
		return nil
	}
	return declareConsumedQueue(ch, t.RatingQueue, t.RatingRoutingKey, t.RatingExchange, t.DeadLetterExchange)
}

func declareConsumedQueue(ch Declarer, queue, key, exchange, deadLetterExchange string) error {
	args := amqp.Table{"x-dead-letter-exchange": deadLetterExchange}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}
	return nil
}
