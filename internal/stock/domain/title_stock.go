// Package domain defines the stock domain entities: title stock records, the
// purchase confirmations that consume them and the events emitted about them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/errors"
)

// TitleStock is the durable stock record of a catalog title.
//
// AvailableStock is never negative and Version is incremented on every mutation.
// Inactive (retired) titles behave as not found for purchase reconciliation.
// Rating and TotalRatings mirror the rating service and never affect stock.
type TitleStock struct {
	ID             int64
	Name           string
	AvailableStock decimal.Decimal
	IsActive       bool
	Rating         int
	TotalRatings   int64
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanFulfill reports whether the title is active and holds at least quantity units.
func (t *TitleStock) CanFulfill(quantity decimal.Decimal) bool {
	return t.IsActive && t.AvailableStock.GreaterThanOrEqual(quantity)
}

// Domain-specific errors for stock operations.
var (
	// ErrTitleNotFound indicates the requested title does not exist.
	ErrTitleNotFound = errors.Wrap(errors.ErrNotFound, "title not found")

	// ErrTitleAlreadyExists indicates a title with the same id already exists.
	ErrTitleAlreadyExists = errors.Wrap(errors.ErrConflict, "title already exists")

	// ErrTitleRetired indicates the title is inactive and can no longer be changed.
	ErrTitleRetired = errors.Wrap(errors.ErrConflict, "title is retired")

	// ErrInsufficientStock indicates a decrement would take the stock below zero.
	ErrInsufficientStock = errors.Wrap(errors.ErrConflict, "insufficient stock")

	// ErrInvalidPurchase indicates a purchase confirmation failed validation.
	ErrInvalidPurchase = errors.Wrap(errors.ErrInvalidInput, "invalid purchase confirmation")

	// ErrInvalidRatingEvent indicates a rating update message failed validation.
	ErrInvalidRatingEvent = errors.Wrap(errors.ErrInvalidInput, "invalid rating event")

	// ErrEmptyRejection indicates a stock rejection was built without details.
	ErrEmptyRejection = errors.Wrap(errors.ErrInvalidInput, "stock rejection requires at least one detail")
)
