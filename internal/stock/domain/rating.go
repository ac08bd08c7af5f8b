package domain

import (
	validation "github.com/jellydator/validation"

	"github.com/almacen/catalog/internal/errors"
)

// Rating event types published by the rating service.
const (
	RatingEventCreate = "CREATE"
	RatingEventDelete = "DELETE"
)

// RatingData carries the recomputed rating of a title. TotalRatings is optional;
// when absent the stored count is kept.
type RatingData struct {
	ID           int64  `json:"id"`
	Rating       int    `json:"rating"`
	TotalRatings *int64 `json:"totalRatings,omitempty"`
}

// RatingUpdated is the inbound envelope announcing a rating change. Only CREATE
// carries a rating to store; other types are acknowledged and ignored.
type RatingUpdated struct {
	EventType string     `json:"eventType"`
	Key       string     `json:"key"`
	Data      RatingData `json:"data"`
}

// Applies reports whether the event changes a stored rating.
func (e *RatingUpdated) Applies() bool {
	return e.EventType == RatingEventCreate
}

// Validate checks an applicable event names a title and a usable rating.
func (e *RatingUpdated) Validate() error {
	err := validation.ValidateStruct(e,
		validation.Field(&e.EventType, validation.Required),
	)
	if err == nil && e.Applies() {
		err = validation.Errors{
			"data.id":           validation.Validate(e.Data.ID, validation.Required, validation.Min(int64(1))),
			"data.rating":       validation.Validate(e.Data.Rating, validation.Min(0)),
			"data.totalRatings": validation.Validate(e.Data.TotalRatings, validation.Min(int64(0))),
		}.Filter()
	}
	if err != nil {
		return errors.Wrap(ErrInvalidRatingEvent, err.Error())
	}
	return nil
}

// ApplyRating stores the rating carried by data on the title.
func (t *TitleStock) ApplyRating(data RatingData) {
	t.Rating = data.Rating
	if data.TotalRatings != nil {
		t.TotalRatings = *data.TotalRatings
	}
}
