package app

import (
	"context"
	"fmt"

	"github.com/almacen/catalog/internal/config"
	"github.com/almacen/catalog/internal/eventbus"
	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
	outboxMySQL "github.com/almacen/catalog/internal/outbox/repository/mysql"
	outboxPostgreSQL "github.com/almacen/catalog/internal/outbox/repository/postgresql"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
)

// BrokerConnection returns the AMQP connection, declaring the topology on first use
// when AMQP_DECLARE_TOPOLOGY is set.
func (c *Container) BrokerConnection() (*eventbus.Connection, error) {
	return resolve(c, &c.brokerInit, "broker", &c.broker, c.initBrokerConnection)
}

// Dispatcher returns the outbound transport selected by EVENT_DISPATCHER.
func (c *Container) Dispatcher() (outboxUseCase.Dispatcher, error) {
	return resolve(c, &c.dispatcherInit, "dispatcher", &c.dispatcher, c.initDispatcher)
}

// TransactionalPublisher returns the publisher selected by EVENT_PUBLISH_MODE.
func (c *Container) TransactionalPublisher() (outboxUseCase.TransactionalPublisher, error) {
	return resolve(c, &c.publisherInit, "publisher", &c.publisher, c.initTransactionalPublisher)
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	return resolve(c, &c.outboxRepositoryInit, "outboxRepository",
		&c.outboxRepository, c.initOutboxRepository)
}

// OutboxUseCase returns the outbox forwarder and cleaner.
func (c *Container) OutboxUseCase() (outboxUseCase.UseCase, error) {
	return resolve(c, &c.outboxUseCaseInit, "outboxUseCase", &c.outboxUseCase, c.initOutboxUseCase)
}

// Listener returns the purchase confirmation listener.
func (c *Container) Listener() (*eventbus.Listener, error) {
	return resolve(c, &c.listenerInit, "listener", &c.listener, c.initListener)
}

// RatingListener returns the rating update listener, or nil when AMQP_RATING_QUEUE
// is empty.
func (c *Container) RatingListener() (*eventbus.Listener, error) {
	if c.config.AMQPRatingQueue == "" {
		return nil, nil
	}
	return resolve(c, &c.ratingListenerInit, "ratingListener", &c.ratingListener, c.initRatingListener)
}

// Topology returns the exchange and queue names from configuration.
func (c *Container) Topology() eventbus.Topology {
	return eventbus.Topology{
		SalesExchange:      c.config.AMQPSalesExchange,
		CatalogExchange:    c.config.AMQPCatalogExchange,
		PurchaseQueue:      c.config.AMQPPurchaseQueue,
		PurchaseRoutingKey: c.config.AMQPPurchaseRoutingKey,
		RatingExchange:     c.config.AMQPRatingExchange,
		RatingQueue:        c.config.AMQPRatingQueue,
		RatingRoutingKey:   c.config.AMQPRatingRoutingKey,
		DeadLetterExchange: c.config.AMQPDeadLetterExchange,
	}
}

func (c *Container) initBrokerConnection() (*eventbus.Connection, error) {
	conn, err := eventbus.Dial(c.config.AMQPURL, c.Logger())
	if err != nil {
		return nil, err
	}

	if !c.config.AMQPDeclareTopology {
		return conn, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	defer func() {
		_ = ch.Close()
	}()

	if err := eventbus.DeclareTopology(ch, c.Topology()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func (c *Container) initDispatcher() (eventDispatcher, error) {
	switch c.config.EventDispatcher {
	case config.DispatcherPubSub:
		dispatcher, err := eventbus.OpenPubSubDispatcher(context.Background(), c.config.PubSubTopicURL)
		if err != nil {
			return nil, err
		}
		return dispatcher, nil
	case config.DispatcherAMQP:
		conn, err := c.BrokerConnection()
		if err != nil {
			return nil, fmt.Errorf("failed to get broker connection for dispatcher: %w", err)
		}
		return eventbus.NewAMQPDispatcher(
			conn,
			c.config.AMQPCatalogExchange,
			c.config.AMQPPublishTimeout,
			c.Logger(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported event dispatcher: %s", c.config.EventDispatcher)
	}
}

func (c *Container) initTransactionalPublisher() (outboxUseCase.TransactionalPublisher, error) {
	switch c.config.EventPublishMode {
	case config.PublishModeOutbox:
		outboxRepository, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for publisher: %w", err)
		}
		return outboxUseCase.NewOutboxPublisher(outboxRepository), nil
	case config.PublishModeAfterCommit:
		return outboxUseCase.NewAfterCommitPublisher(lazyDispatcher{container: c}, c.Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported event publish mode: %s", c.config.EventPublishMode)
	}
}

func (c *Container) initOutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return outboxPostgreSQL.NewPostgreSQLOutboxEventRepository(db), nil
	case "mysql":
		return outboxMySQL.NewMySQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxUseCase wires the forwarder to the dispatcher.
func (c *Container) initOutboxUseCase() (outboxUseCase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepository, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	useCaseConfig := outboxUseCase.Config{
		Interval:   c.config.OutboxInterval,
		BatchSize:  c.config.OutboxBatchSize,
		MaxRetries: c.config.OutboxMaxRetries,
	}

	eventProcessor := outboxUseCase.NewDispatchingEventProcessor(lazyDispatcher{container: c})
	return outboxUseCase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepository, eventProcessor, c.Logger()), nil
}

func (c *Container) initListener() (*eventbus.Listener, error) {
	handler, err := c.PurchaseConfirmedHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase handler for listener: %w", err)
	}

	listenerConfig := eventbus.ListenerConfig{
		Queue:          c.config.AMQPPurchaseQueue,
		ConsumerTag:    c.config.AMQPConsumerTag,
		Prefetch:       c.config.AMQPPrefetch,
		Workers:        c.config.AMQPWorkers,
		HandlerTimeout: c.config.ListenerHandlerTimeout,
	}
	messagingMetrics, err := c.MessagingMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging metrics for listener: %w", err)
	}
	return eventbus.NewListener(listenerConfig, handler, c.Logger(), eventbus.WithListenerMetrics(messagingMetrics)), nil
}

// initRatingListener consumes the rating queue with its own consumer tag. A single
// worker applies updates in queue order.
func (c *Container) initRatingListener() (*eventbus.Listener, error) {
	handler, err := c.RatingUpdatedHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get rating handler for listener: %w", err)
	}

	listenerConfig := eventbus.ListenerConfig{
		Queue:          c.config.AMQPRatingQueue,
		ConsumerTag:    c.config.AMQPConsumerTag + "-rating",
		Prefetch:       c.config.AMQPPrefetch,
		Workers:        1,
		HandlerTimeout: c.config.ListenerHandlerTimeout,
	}
	messagingMetrics, err := c.MessagingMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging metrics for rating listener: %w", err)
	}
	return eventbus.NewListener(listenerConfig, handler, c.Logger(), eventbus.WithListenerMetrics(messagingMetrics)), nil
}

// lazyDispatcher resolves the container's dispatcher on first dispatch, so commands
// that never publish (check-event, clean-outbox) run without a broker.
type lazyDispatcher struct {
	container *Container
}

func (d lazyDispatcher) Dispatch(ctx context.Context, msg outboxDomain.Message) error {
	dispatcher, err := d.container.Dispatcher()
	if err != nil {
		return err
	}
	messagingMetrics, err := d.container.MessagingMetrics()
	if err != nil {
		return err
	}
	return outboxUseCase.NewDispatcherWithMetrics(dispatcher, messagingMetrics).Dispatch(ctx, msg)
}
