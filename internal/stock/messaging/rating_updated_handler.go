package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/almacen/catalog/internal/errors"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

// RatingUpdatedHandler turns rating service messages into rating updates.
//
// DELETE and unknown event types are acknowledged without touching the title. A
// rating for a title the catalog does not know is permanent and dead-letters.
type RatingUpdatedHandler struct {
	useCase stockUseCase.RatingUseCase
	logger  *slog.Logger
}

// NewRatingUpdatedHandler creates a new RatingUpdatedHandler.
func NewRatingUpdatedHandler(useCase stockUseCase.RatingUseCase, logger *slog.Logger) *RatingUpdatedHandler {
	return &RatingUpdatedHandler{useCase: useCase, logger: logger}
}

// Handle decodes body and applies the rating.
func (h *RatingUpdatedHandler) Handle(ctx context.Context, body []byte) error {
	var event stockDomain.RatingUpdated
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Wrap(stockDomain.ErrInvalidRatingEvent, "malformed message body: "+err.Error())
	}

	title, err := h.useCase.Apply(ctx, &event)
	if err != nil {
		h.logger.Error("failed to apply rating",
			slog.String("event_type", event.EventType),
			slog.Int64("title_id", event.Data.ID),
			slog.Bool("transient", apperrors.IsTransient(err)),
			slog.Any("error", err),
		)
		return err
	}

	if title == nil {
		h.logger.Debug("rating event ignored",
			slog.String("event_type", event.EventType),
			slog.String("key", event.Key),
		)
		return nil
	}

	h.logger.Info("title rating updated",
		slog.Int64("title_id", title.ID),
		slog.Int("rating", title.Rating),
		slog.Int64("total_ratings", title.TotalRatings),
	)
	return nil
}
