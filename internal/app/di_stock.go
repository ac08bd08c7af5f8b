package app

import (
	"fmt"

	ledgerMySQL "github.com/almacen/catalog/internal/ledger/repository/mysql"
	ledgerPostgreSQL "github.com/almacen/catalog/internal/ledger/repository/postgresql"
	stockHTTP "github.com/almacen/catalog/internal/stock/http"
	"github.com/almacen/catalog/internal/stock/messaging"
	stockMySQL "github.com/almacen/catalog/internal/stock/repository/mysql"
	stockPostgreSQL "github.com/almacen/catalog/internal/stock/repository/postgresql"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

// TitleStockRepository returns the title stock repository based on database driver.
func (c *Container) TitleStockRepository() (stockUseCase.TitleStockRepository, error) {
	return resolve(c, &c.titleRepositoryInit, "titleRepository", &c.titleRepository, c.initTitleStockRepository)
}

// ProcessedEventRepository returns the ledger repository based on database driver.
func (c *Container) ProcessedEventRepository() (stockUseCase.ProcessedEventRepository, error) {
	return resolve(c, &c.ledgerRepositoryInit, "ledgerRepository", &c.ledgerRepository, c.initProcessedEventRepository)
}

// TitleUseCase returns the title management use case.
func (c *Container) TitleUseCase() (stockUseCase.TitleUseCase, error) {
	return resolve(c, &c.titleUseCaseInit, "titleUseCase", &c.titleUseCase, c.initTitleUseCase)
}

// ReconciliationUseCase returns the purchase reconciliation engine.
func (c *Container) ReconciliationUseCase() (stockUseCase.ReconciliationUseCase, error) {
	return resolve(c, &c.reconciliationUseCaseInit, "reconciliationUseCase",
		&c.reconciliationUseCase, c.initReconciliationUseCase)
}

// RatingUseCase returns the title rating use case.
func (c *Container) RatingUseCase() (stockUseCase.RatingUseCase, error) {
	return resolve(c, &c.ratingUseCaseInit, "ratingUseCase", &c.ratingUseCase, c.initRatingUseCase)
}

// TitleHandler returns the HTTP handler for title management.
func (c *Container) TitleHandler() (*stockHTTP.TitleHandler, error) {
	return resolve(c, &c.titleHandlerInit, "titleHandler", &c.titleHandler, c.initTitleHandler)
}

// PurchaseConfirmedHandler returns the handler fed by the listener.
func (c *Container) PurchaseConfirmedHandler() (*messaging.PurchaseConfirmedHandler, error) {
	return resolve(c, &c.purchaseHandlerInit, "purchaseHandler",
		&c.purchaseHandler, c.initPurchaseConfirmedHandler)
}

// RatingUpdatedHandler returns the handler fed by the rating listener.
func (c *Container) RatingUpdatedHandler() (*messaging.RatingUpdatedHandler, error) {
	return resolve(c, &c.ratingHandlerInit, "ratingHandler", &c.ratingHandler, c.initRatingUpdatedHandler)
}

func (c *Container) initTitleStockRepository() (stockUseCase.TitleStockRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for title stock repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return stockPostgreSQL.NewPostgreSQLTitleStockRepository(db), nil
	case "mysql":
		return stockMySQL.NewMySQLTitleStockRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initProcessedEventRepository() (stockUseCase.ProcessedEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for processed event repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return ledgerPostgreSQL.NewPostgreSQLProcessedEventRepository(db), nil
	case "mysql":
		return ledgerMySQL.NewMySQLProcessedEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initTitleUseCase() (stockUseCase.TitleUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for title use case: %w", err)
	}

	titleRepository, err := c.TitleStockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get title stock repository for title use case: %w", err)
	}

	publisher, err := c.TransactionalPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for title use case: %w", err)
	}

	baseUseCase := stockUseCase.NewTitleUseCase(txManager, titleRepository, publisher)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for title use case: %w", err)
		}
		return stockUseCase.NewTitleUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initReconciliationUseCase() (stockUseCase.ReconciliationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reconciliation use case: %w", err)
	}

	titleRepository, err := c.TitleStockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get title stock repository for reconciliation use case: %w", err)
	}

	ledgerRepository, err := c.ProcessedEventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get processed event repository for reconciliation use case: %w", err)
	}

	publisher, err := c.TransactionalPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for reconciliation use case: %w", err)
	}

	baseUseCase := stockUseCase.NewReconciliationUseCase(
		txManager,
		titleRepository,
		ledgerRepository,
		publisher,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for reconciliation use case: %w", err)
		}
		return stockUseCase.NewReconciliationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initRatingUseCase() (stockUseCase.RatingUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rating use case: %w", err)
	}

	titleRepository, err := c.TitleStockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get title stock repository for rating use case: %w", err)
	}

	baseUseCase := stockUseCase.NewRatingUseCase(txManager, titleRepository)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for rating use case: %w", err)
		}
		return stockUseCase.NewRatingUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initTitleHandler() (*stockHTTP.TitleHandler, error) {
	titleUseCase, err := c.TitleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get title use case for title handler: %w", err)
	}
	return stockHTTP.NewTitleHandler(titleUseCase, c.Logger()), nil
}

func (c *Container) initPurchaseConfirmedHandler() (*messaging.PurchaseConfirmedHandler, error) {
	useCase, err := c.ReconciliationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation use case for purchase handler: %w", err)
	}
	return messaging.NewPurchaseConfirmedHandler(useCase, c.Logger()), nil
}

func (c *Container) initRatingUpdatedHandler() (*messaging.RatingUpdatedHandler, error) {
	useCase, err := c.RatingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rating use case for rating handler: %w", err)
	}
	return messaging.NewRatingUpdatedHandler(useCase, c.Logger()), nil
}
