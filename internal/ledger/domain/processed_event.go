// Package domain defines the idempotency ledger: the append-only record of
// inbound events that were already evaluated.
package domain

import (
	"time"

	"github.com/almacen/catalog/internal/errors"
)

// ProcessedEvent is a ledger row. It is written once, in the same transaction as
// the stock decision it records, and never updated or deleted.
type ProcessedEvent struct {
	EventID      string
	ProcessedAt  time.Time
	SourceSystem string
	PurchaseID   int64
}

// ErrEventAlreadyProcessed indicates a ledger row for the event id already exists.
var ErrEventAlreadyProcessed = errors.Wrap(errors.ErrConflict, "event already processed")
