// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/almacen/catalog/internal/config"
	"github.com/almacen/catalog/internal/database"
	"github.com/almacen/catalog/internal/eventbus"
	"github.com/almacen/catalog/internal/http"
	"github.com/almacen/catalog/internal/metrics"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
	stockHTTP "github.com/almacen/catalog/internal/stock/http"
	"github.com/almacen/catalog/internal/stock/messaging"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

// eventDispatcher is an outbound transport that owns resources to release.
type eventDispatcher interface {
	outboxUseCase.Dispatcher
	Close(ctx context.Context) error
}

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	broker          *eventbus.Connection
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	messaging       metrics.MessagingMetrics

	// Managers
	txManager database.TxManager

	// Repositories
	titleRepository  stockUseCase.TitleStockRepository
	ledgerRepository stockUseCase.ProcessedEventRepository
	outboxRepository outboxUseCase.OutboxEventRepository

	// Event publication
	dispatcher eventDispatcher
	publisher  outboxUseCase.TransactionalPublisher

	// Use Cases
	titleUseCase          stockUseCase.TitleUseCase
	reconciliationUseCase stockUseCase.ReconciliationUseCase
	ratingUseCase         stockUseCase.RatingUseCase
	outboxUseCase         outboxUseCase.UseCase

	// Handlers
	titleHandler    *stockHTTP.TitleHandler
	purchaseHandler *messaging.PurchaseConfirmedHandler
	ratingHandler   *messaging.RatingUpdatedHandler

	// Servers and Workers
	httpServer     *http.Server
	metricsServer  *http.MetricsServer
	listener       *eventbus.Listener
	ratingListener *eventbus.Listener

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	initErrMu                 sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	brokerInit                sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	messagingMetricsInit      sync.Once
	txManagerInit             sync.Once
	titleRepositoryInit       sync.Once
	ledgerRepositoryInit      sync.Once
	outboxRepositoryInit      sync.Once
	dispatcherInit            sync.Once
	publisherInit             sync.Once
	titleUseCaseInit          sync.Once
	reconciliationUseCaseInit sync.Once
	ratingUseCaseInit         sync.Once
	outboxUseCaseInit         sync.Once
	titleHandlerInit          sync.Once
	purchaseHandlerInit       sync.Once
	ratingHandlerInit         sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	listenerInit              sync.Once
	ratingListenerInit        sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// resolve runs init once per component and stores the result in slot. A failed
// init is remembered under key and returned on every later call.
func resolve[T any](c *Container, once *sync.Once, key string, slot *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		if err != nil {
			c.initErrMu.Lock()
			c.initErrors[key] = err
			c.initErrMu.Unlock()
			return
		}
		*slot = value
	})

	c.initErrMu.Lock()
	err, failed := c.initErrors[key]
	c.initErrMu.Unlock()
	if failed {
		var zero T
		return zero, err
	}
	return *slot, nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	return resolve(c, &c.dbInit, "db", &c.db, c.initDB)
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	return resolve(c, &c.txManagerInit, "txManager", &c.txManager, c.initTxManager)
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return resolve(c, &c.metricsProviderInit, "metricsProvider",
		&c.metricsProvider, c.initMetricsProvider)
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return resolve(c, &c.businessMetricsInit, "businessMetrics",
		&c.businessMetrics, c.initBusinessMetrics)
}

// MessagingMetrics returns the broker traffic recorder. It is a no-op when metrics are disabled.
func (c *Container) MessagingMetrics() (metrics.MessagingMetrics, error) {
	return resolve(c, &c.messagingMetricsInit, "messagingMetrics", &c.messaging, c.initMessagingMetrics)
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	return resolve(c, &c.httpServerInit, "httpServer", &c.httpServer, c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return resolve(c, &c.metricsServerInit, "metricsServer", &c.metricsServer, c.initMetricsServer)
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Dispatcher channels live on the broker connection, close them first.
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("dispatcher close: %w", err))
		}
	}

	if c.broker != nil {
		if err := c.broker.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("broker close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		LockTimeout:        c.config.DBLockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager with the configured lock wait timeout.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db, database.WithLockTimeout(c.config.DBDriver, c.config.DBLockTimeout)), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initMessagingMetrics() (metrics.MessagingMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for messaging metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpMessagingMetrics(), nil
	}
	return metrics.NewMessagingMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	broker, err := c.BrokerConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to get broker connection for http server: %w", err)
	}

	titleHandler, err := c.TitleHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get title handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, broker, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, titleHandler, metricsProvider)

	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, provider, c.Logger()), nil
}
