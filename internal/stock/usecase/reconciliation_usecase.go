package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/database"
	apperrors "github.com/almacen/catalog/internal/errors"
	ledgerDomain "github.com/almacen/catalog/internal/ledger/domain"
	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// itemCheck is the classification of one aggregated title.
type itemCheck struct {
	quantity       stockDomain.TitleQuantity
	title          *stockDomain.TitleStock
	classification stockDomain.ItemClassification
}

// reconciliationUseCase implements ReconciliationUseCase.
type reconciliationUseCase struct {
	txManager  database.TxManager
	titleRepo  TitleStockRepository
	ledgerRepo ProcessedEventRepository
	publisher  outboxUseCase.TransactionalPublisher
	logger     *slog.Logger
}

// Process checks the ledger, locks every requested title in ascending id order,
// then either decrements all of them or rejects the whole purchase, and records
// the event id in the ledger before committing.
func (r *reconciliationUseCase) Process(
	ctx context.Context,
	event *stockDomain.PurchaseConfirmed,
) (stockDomain.Outcome, error) {
	if err := event.Validate(); err != nil {
		return stockDomain.Outcome{}, err
	}

	var outcome stockDomain.Outcome
	err := r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		exists, err := r.ledgerRepo.Exists(txCtx, event.EventID)
		if err != nil {
			return err
		}
		if exists {
			outcome = stockDomain.Duplicate()
			return nil
		}

		checks, err := r.checkItems(txCtx, event.AggregateItems())
		if err != nil {
			return err
		}

		rejection, err := buildRejection(event.PurchaseID, checks)
		if err != nil {
			return err
		}

		if rejection == nil {
			for _, check := range checks {
				qty := check.quantity
				if err := r.titleRepo.DecrementStock(txCtx, qty.TitleID, qty.Quantity); err != nil {
					return err
				}
			}
			outcome = stockDomain.Accepted()
		} else {
			msg, err := outboxDomain.NewMessage(rejection.EventID, stockDomain.RoutingKeyStockRejected, rejection)
			if err != nil {
				return err
			}
			if err := r.publisher.PublishAfterCommit(txCtx, msg); err != nil {
				return err
			}
			outcome = stockDomain.Rejected(rejection)
		}

		return r.ledgerRepo.Record(txCtx, &ledgerDomain.ProcessedEvent{
			EventID:      event.EventID,
			ProcessedAt:  time.Now().UTC(),
			SourceSystem: stockDomain.SourceSales,
			PurchaseID:   event.PurchaseID,
		})
	})
	if err != nil {
		// Another worker recorded the same event first; everything done here was rolled back.
		if errors.Is(err, ledgerDomain.ErrEventAlreadyProcessed) {
			r.logger.Info("concurrent duplicate purchase confirmation",
				slog.String("event_id", event.EventID),
				slog.Int64("purchase_id", event.PurchaseID),
			)
			return stockDomain.Duplicate(), nil
		}
		return stockDomain.Outcome{}, err
	}

	return outcome, nil
}

func (r *reconciliationUseCase) checkItems(
	ctx context.Context,
	quantities []stockDomain.TitleQuantity,
) ([]itemCheck, error) {
	checks := make([]itemCheck, 0, len(quantities))
	for _, quantity := range quantities {
		title, err := r.titleRepo.GetForUpdate(ctx, quantity.TitleID)
		if err != nil && !errors.Is(err, stockDomain.ErrTitleNotFound) {
			return nil, err
		}

		check := itemCheck{quantity: quantity, title: title}
		switch {
		case title == nil || !title.IsActive:
			check.classification = stockDomain.ItemTitleNotFound
		case !title.CanFulfill(quantity.Quantity):
			check.classification = stockDomain.ItemInsufficientStock
		default:
			check.classification = stockDomain.ItemOK
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// buildRejection returns nil when every title is fulfillable. A missing title wins
// over insufficient stock; details hold one entry per purchase line of every
// failing title.
func buildRejection(purchaseID int64, checks []itemCheck) (*stockDomain.StockRejected, error) {
	var (
		details      []stockDomain.RejectionDetail
		anyNotFound  bool
		anyShortfall bool
	)

	for _, check := range checks {
		var available *decimal.Decimal
		switch check.classification {
		case stockDomain.ItemTitleNotFound:
			anyNotFound = true
		case stockDomain.ItemInsufficientStock:
			anyShortfall = true
			stock := check.title.AvailableStock
			available = &stock
		default:
			continue
		}

		for _, line := range check.quantity.Items {
			details = append(details, stockDomain.RejectionDetail{
				TitleID:           line.TitleID,
				QuantityRequested: line.Quantity,
				QuantityAvailable: available,
			})
		}
	}

	switch {
	case anyNotFound:
		return stockDomain.NewStockRejected(purchaseID, stockDomain.ReasonTitleNotFound, details)
	case anyShortfall:
		return stockDomain.NewStockRejected(purchaseID, stockDomain.ReasonInsufficientStock, details)
	default:
		return nil, nil
	}
}

// IsProcessed reports whether the ledger holds the event id.
func (r *reconciliationUseCase) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, apperrors.Wrap(apperrors.ErrInvalidInput, "event id is required")
	}
	return r.ledgerRepo.Exists(ctx, eventID)
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(
	txManager database.TxManager,
	titleRepo TitleStockRepository,
	ledgerRepo ProcessedEventRepository,
	publisher outboxUseCase.TransactionalPublisher,
	logger *slog.Logger,
) ReconciliationUseCase {
	return &reconciliationUseCase{
		txManager:  txManager,
		titleRepo:  titleRepo,
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		logger:     logger,
	}
}
