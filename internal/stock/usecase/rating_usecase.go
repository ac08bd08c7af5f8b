package usecase

import (
	"context"
	"time"

	"github.com/almacen/catalog/internal/database"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// ratingUseCase implements RatingUseCase. Ratings are informational: they are
// stored on retired titles too and publish no lifecycle event.
type ratingUseCase struct {
	txManager database.TxManager
	titleRepo TitleStockRepository
}

// Apply validates the event and, for CREATE events, stores the new rating under
// the title's row lock. A missing title returns ErrTitleNotFound.
func (r *ratingUseCase) Apply(
	ctx context.Context,
	event *stockDomain.RatingUpdated,
) (*stockDomain.TitleStock, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if !event.Applies() {
		return nil, nil
	}

	var title *stockDomain.TitleStock
	err := r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		title, err = r.titleRepo.GetForUpdate(txCtx, event.Data.ID)
		if err != nil {
			return err
		}

		title.ApplyRating(event.Data)
		title.UpdatedAt = time.Now().UTC()
		if err := r.titleRepo.UpdateRating(txCtx, title); err != nil {
			return err
		}
		title.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return title, nil
}

// NewRatingUseCase creates a new RatingUseCase.
func NewRatingUseCase(txManager database.TxManager, titleRepo TitleStockRepository) RatingUseCase {
	return &ratingUseCase{
		txManager: txManager,
		titleRepo: titleRepo,
	}
}
