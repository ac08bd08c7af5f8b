package usecase

import (
	"context"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/database"
	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
	customValidation "github.com/almacen/catalog/internal/validation"
)

// titleUseCase implements TitleUseCase. Every mutation publishes a title lifecycle
// event through the same transaction.
type titleUseCase struct {
	txManager database.TxManager
	titleRepo TitleStockRepository
	publisher outboxUseCase.TransactionalPublisher
}

// Create registers a title with its initial stock.
func (t *titleUseCase) Create(
	ctx context.Context,
	id int64,
	name string,
	initialStock decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	err := validation.Errors{
		"id":           validation.Validate(id, validation.Required, validation.Min(int64(1))),
		"name":         validation.Validate(name, customValidation.TitleName()...),
		"initialStock": validation.Validate(initialStock, customValidation.NonNegativeQuantity),
	}.Filter()
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	now := time.Now().UTC()
	title := &stockDomain.TitleStock{
		ID:             id,
		Name:           name,
		AvailableStock: initialStock,
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = t.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := t.titleRepo.Create(txCtx, title); err != nil {
			return err
		}
		return t.publish(txCtx, stockDomain.EventTypeTitleCreated, title)
	})
	if err != nil {
		return nil, err
	}
	return title, nil
}

// Get returns a title by id.
func (t *titleUseCase) Get(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	return t.titleRepo.GetByID(ctx, id)
}

// List returns titles ordered by id.
func (t *titleUseCase) List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error) {
	return t.titleRepo.List(ctx, offset, limit)
}

// Restock adds quantity to an active title.
func (t *titleUseCase) Restock(
	ctx context.Context,
	id int64,
	quantity decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	if err := validation.Validate(quantity, customValidation.PositiveQuantity); err != nil {
		return nil, customValidation.WrapValidationError(validation.Errors{"quantity": err})
	}

	var title *stockDomain.TitleStock
	err := t.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		title, err = t.titleRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !title.IsActive {
			return stockDomain.ErrTitleRetired
		}

		title.AvailableStock = title.AvailableStock.Add(quantity)
		return t.save(txCtx, stockDomain.EventTypeTitleStockAdjusted, title)
	})
	if err != nil {
		return nil, err
	}
	return title, nil
}

// Retire deactivates a title. Retiring an already retired title is a no-op.
func (t *titleUseCase) Retire(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	var title *stockDomain.TitleStock
	err := t.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		title, err = t.titleRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !title.IsActive {
			return nil
		}

		title.IsActive = false
		return t.save(txCtx, stockDomain.EventTypeTitleRetired, title)
	})
	if err != nil {
		return nil, err
	}
	return title, nil
}

// save persists a mutated title, mirroring the version bump done by the repository.
func (t *titleUseCase) save(ctx context.Context, eventType string, title *stockDomain.TitleStock) error {
	title.UpdatedAt = time.Now().UTC()
	if err := t.titleRepo.Update(ctx, title); err != nil {
		return err
	}
	title.Version++
	return t.publish(ctx, eventType, title)
}

func (t *titleUseCase) publish(ctx context.Context, eventType string, title *stockDomain.TitleStock) error {
	event, err := stockDomain.NewTitleEvent(eventType, title)
	if err != nil {
		return err
	}

	msg, err := outboxDomain.NewMessage(event.EventID, event.EventType, event)
	if err != nil {
		return err
	}
	return t.publisher.PublishAfterCommit(ctx, msg)
}

// NewTitleUseCase creates a new TitleUseCase.
func NewTitleUseCase(
	txManager database.TxManager,
	titleRepo TitleStockRepository,
	publisher outboxUseCase.TransactionalPublisher,
) TitleUseCase {
	return &titleUseCase{
		txManager: txManager,
		titleRepo: titleRepo,
		publisher: publisher,
	}
}
