// Package usecase implements purchase reconciliation against title stock and the
// administrative title stock operations.
package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	ledgerDomain "github.com/almacen/catalog/internal/ledger/domain"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// TitleStockRepository defines the interface for title stock persistence operations.
type TitleStockRepository interface {
	Create(ctx context.Context, title *stockDomain.TitleStock) error
	GetByID(ctx context.Context, id int64) (*stockDomain.TitleStock, error)
	// GetForUpdate reads the title and holds a row lock until the transaction in ctx ends.
	GetForUpdate(ctx context.Context, id int64) (*stockDomain.TitleStock, error)
	List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error)
	DecrementStock(ctx context.Context, id int64, quantity decimal.Decimal) error
	Update(ctx context.Context, title *stockDomain.TitleStock) error
	UpdateRating(ctx context.Context, title *stockDomain.TitleStock) error
}

// ProcessedEventRepository is the idempotency ledger.
type ProcessedEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, event *ledgerDomain.ProcessedEvent) error
}

// ReconciliationUseCase applies purchase confirmations to title stock exactly once.
type ReconciliationUseCase interface {
	// Process evaluates the event in a single transaction. Errors wrapping
	// apperrors.ErrUnavailable are transient and leave no state behind.
	Process(ctx context.Context, event *stockDomain.PurchaseConfirmed) (stockDomain.Outcome, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}

// TitleUseCase defines the administrative operations on title stock.
type TitleUseCase interface {
	Create(ctx context.Context, id int64, name string, initialStock decimal.Decimal) (*stockDomain.TitleStock, error)
	Get(ctx context.Context, id int64) (*stockDomain.TitleStock, error)
	List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error)
	Restock(ctx context.Context, id int64, quantity decimal.Decimal) (*stockDomain.TitleStock, error)
	Retire(ctx context.Context, id int64) (*stockDomain.TitleStock, error)
}

// RatingUseCase keeps title ratings in step with the rating service.
type RatingUseCase interface {
	// Apply stores the rating carried by an applicable event and returns the
	// updated title. Events that do not apply return a nil title.
	Apply(ctx context.Context, event *stockDomain.RatingUpdated) (*stockDomain.TitleStock, error)
}
