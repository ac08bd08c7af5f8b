// Package dto provides data transfer objects for the title stock HTTP API.
package dto

import (
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	customValidation "github.com/almacen/catalog/internal/validation"
)

// CreateTitleRequest registers a catalog title for stock tracking.
// Stock values accept JSON numbers or decimal strings.
type CreateTitleRequest struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	InitialStock decimal.Decimal `json:"initial_stock"`
}

// Validate checks if the create title request is valid.
func (r *CreateTitleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Name, customValidation.TitleName()...),
		validation.Field(&r.InitialStock, customValidation.NonNegativeQuantity),
	)
}

// RestockRequest adds units to a title.
type RestockRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// Validate checks if the restock request is valid.
func (r *RestockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Quantity, customValidation.PositiveQuantity),
	)
}
