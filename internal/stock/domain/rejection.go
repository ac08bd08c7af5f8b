package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoutingKeyStockRejected identifies stock rejection notifications on the catalog exchange.
const RoutingKeyStockRejected = "catalog.stock.rejected"

// ReasonCode explains why a purchase was rejected.
type ReasonCode string

const (
	ReasonTitleNotFound     ReasonCode = "TITLE_NOT_FOUND"
	ReasonInsufficientStock ReasonCode = "INSUFFICIENT_STOCK"
)

// RejectionDetail describes one title that failed validation.
// QuantityAvailable is nil when the title was not found.
type RejectionDetail struct {
	TitleID           int64            `json:"titleId"`
	QuantityRequested int              `json:"quantityRequested"`
	QuantityAvailable *decimal.Decimal `json:"quantityAvailable"`
}

// StockRejected is the compensating event emitted when a purchase cannot be applied.
type StockRejected struct {
	EventID    string            `json:"eventId"`
	PurchaseID int64             `json:"purchaseId"`
	ReasonCode ReasonCode        `json:"reasonCode"`
	Details    []RejectionDetail `json:"details"`
}

// NewStockRejected builds a rejection with a fresh event id. It refuses an empty details list.
func NewStockRejected(purchaseID int64, reason ReasonCode, details []RejectionDetail) (*StockRejected, error) {
	if len(details) == 0 {
		return nil, ErrEmptyRejection
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	copied := make([]RejectionDetail, len(details))
	copy(copied, details)

	return &StockRejected{
		EventID:    eventID.String(),
		PurchaseID: purchaseID,
		ReasonCode: reason,
		Details:    copied,
	}, nil
}
