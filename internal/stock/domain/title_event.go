package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Title lifecycle event types. They double as routing keys on the catalog exchange.
const (
	EventTypeTitleCreated       = "TitleCreated.v1"
	EventTypeTitleStockAdjusted = "TitleStockAdjusted.v1"
	EventTypeTitleRetired       = "TitleRetired.v1"
)

// TitlePayload is the state snapshot carried by title lifecycle events.
type TitlePayload struct {
	TitleID        int64           `json:"titleId"`
	Name           string          `json:"name"`
	AvailableStock decimal.Decimal `json:"availableStock"`
	IsActive       bool            `json:"isActive"`
	Version        int64           `json:"version"`
}

// TitleEvent is the envelope for title lifecycle events.
type TitleEvent struct {
	EventID    string       `json:"eventId"`
	EventType  string       `json:"eventType"`
	OccurredAt time.Time    `json:"occurredAt"`
	Payload    TitlePayload `json:"payload"`
}

// NewTitleEvent snapshots title into an event of the given type.
func NewTitleEvent(eventType string, title *TitleStock) (*TitleEvent, error) {
	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	return &TitleEvent{
		EventID:    eventID.String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload: TitlePayload{
			TitleID:        title.ID,
			Name:           title.Name,
			AvailableStock: title.AvailableStock,
			IsActive:       title.IsActive,
			Version:        title.Version,
		},
	}, nil
}
