package domain

import (
	"sort"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/errors"
	customValidation "github.com/almacen/catalog/internal/validation"
)

// SourceSales tags ledger rows for events originating in the sales service.
const SourceSales = "sales"

// PurchaseItem is one line of a confirmed purchase.
type PurchaseItem struct {
	TitleID  int64 `json:"titleId"`
	Quantity int   `json:"quantity"`
}

// Validate implements validation.Validatable.
func (i PurchaseItem) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.TitleID, validation.Required, validation.Min(int64(1))),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
	)
}

// PurchaseConfirmed is the inbound event announcing a purchase accepted by the sales service.
// EventID is the idempotency key.
type PurchaseConfirmed struct {
	EventID    string         `json:"eventId"`
	PurchaseID int64          `json:"purchaseId"`
	CustomerID string         `json:"customerId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Items      []PurchaseItem `json:"items"`
}

// Validate checks the event can be reconciled. A failure is permanent: redelivering
// the same event cannot make it valid.
func (e *PurchaseConfirmed) Validate() error {
	err := validation.ValidateStruct(e,
		validation.Field(&e.EventID, customValidation.EventID()...),
		validation.Field(&e.PurchaseID, validation.Required, validation.Min(int64(1))),
		validation.Field(&e.CustomerID, validation.Required),
		validation.Field(&e.Items, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return errors.Wrap(ErrInvalidPurchase, err.Error())
	}
	return nil
}

// TitleQuantity is the total quantity requested for one title within a purchase,
// together with the lines it was summed from. The total is a decimal so repeated
// lines can never wrap around.
type TitleQuantity struct {
	TitleID  int64
	Quantity decimal.Decimal
	Items    []PurchaseItem
}

// AggregateItems sums the quantities requested per title and returns them ordered
// by ascending title id, which is the order row locks must be taken in. Lines keep
// their original order within each title.
func (e *PurchaseConfirmed) AggregateItems() []TitleQuantity {
	byTitle := make(map[int64]*TitleQuantity, len(e.Items))
	for _, item := range e.Items {
		total, ok := byTitle[item.TitleID]
		if !ok {
			total = &TitleQuantity{TitleID: item.TitleID, Quantity: decimal.Zero}
			byTitle[item.TitleID] = total
		}
		total.Quantity = total.Quantity.Add(decimal.NewFromInt(int64(item.Quantity)))
		total.Items = append(total.Items, item)
	}

	result := make([]TitleQuantity, 0, len(byTitle))
	for _, total := range byTitle {
		result = append(result, *total)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TitleID < result[j].TitleID
	})

	return result
}
