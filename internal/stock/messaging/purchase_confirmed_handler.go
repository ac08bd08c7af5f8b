// Package messaging adapts inbound transport messages to the stock use cases.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/almacen/catalog/internal/errors"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

// PurchaseConfirmedHandler turns purchase confirmation messages into reconciliation calls.
//
// A nil return means the message reached a terminal outcome (accepted, rejected or
// duplicate). Errors wrapping apperrors.ErrUnavailable are worth redelivering; any
// other error is permanent.
type PurchaseConfirmedHandler struct {
	useCase stockUseCase.ReconciliationUseCase
	logger  *slog.Logger
}

// NewPurchaseConfirmedHandler creates a new PurchaseConfirmedHandler.
func NewPurchaseConfirmedHandler(
	useCase stockUseCase.ReconciliationUseCase,
	logger *slog.Logger,
) *PurchaseConfirmedHandler {
	return &PurchaseConfirmedHandler{useCase: useCase, logger: logger}
}

// Handle decodes body and reconciles the purchase.
func (h *PurchaseConfirmedHandler) Handle(ctx context.Context, body []byte) error {
	var event stockDomain.PurchaseConfirmed
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Wrap(stockDomain.ErrInvalidPurchase, "malformed message body: "+err.Error())
	}

	outcome, err := h.useCase.Process(ctx, &event)
	if err != nil {
		h.logger.Error("failed to reconcile purchase",
			slog.String("event_id", event.EventID),
			slog.Int64("purchase_id", event.PurchaseID),
			slog.Bool("transient", apperrors.IsTransient(err)),
			slog.Any("error", err),
		)
		return err
	}

	attrs := []any{
		slog.String("event_id", event.EventID),
		slog.Int64("purchase_id", event.PurchaseID),
		slog.String("outcome", string(outcome.Kind)),
	}
	if outcome.Rejection != nil {
		attrs = append(attrs,
			slog.String("reason_code", string(outcome.Rejection.ReasonCode)),
			slog.String("rejection_event_id", outcome.Rejection.EventID),
		)
	}
	h.logger.Info("purchase reconciled", attrs...)

	return nil
}
