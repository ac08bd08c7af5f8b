package validation

import (
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

// StockScale is the number of fractional digits a stock quantity may carry.
const StockScale = 2

// DecimalQuantity validates a decimal.Decimal stock quantity.
type DecimalQuantity struct {
	// AllowZero accepts zero as a valid quantity.
	AllowZero bool
}

// Validate checks the value is a decimal that is positive (or zero when allowed)
// and has at most StockScale fractional digits.
func (q DecimalQuantity) Validate(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil // Let Required handle nil pointers
		}
		d = *v
	default:
		return validation.NewError("validation_decimal_type", "must be a decimal number")
	}

	if d.IsNegative() || (d.IsZero() && !q.AllowZero) {
		if q.AllowZero {
			return validation.NewError("validation_decimal_non_negative", "must not be negative")
		}
		return validation.NewError("validation_decimal_positive", "must be greater than zero")
	}

	if !d.Equal(d.Truncate(StockScale)) {
		return validation.NewError("validation_decimal_scale", "must have at most 2 decimal places")
	}

	return nil
}

// PositiveQuantity accepts decimals strictly greater than zero.
var PositiveQuantity = DecimalQuantity{}

// NonNegativeQuantity accepts zero and positive decimals.
var NonNegativeQuantity = DecimalQuantity{AllowZero: true}
