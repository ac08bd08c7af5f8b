package dto

import (
	"time"

	"github.com/shopspring/decimal"

	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// TitleResponse represents a title stock record in API responses.
type TitleResponse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	IsActive       bool            `json:"is_active"`
	Rating         int             `json:"rating"`
	TotalRatings   int64           `json:"total_ratings"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ListTitlesResponse represents a paginated list of titles.
type ListTitlesResponse struct {
	Data []TitleResponse `json:"data"`
}

// MapTitleToResponse converts a domain title to an API response.
func MapTitleToResponse(title *stockDomain.TitleStock) TitleResponse {
	return TitleResponse{
		ID:             title.ID,
		Name:           title.Name,
		AvailableStock: title.AvailableStock,
		IsActive:       title.IsActive,
		Rating:         title.Rating,
		TotalRatings:   title.TotalRatings,
		Version:        title.Version,
		CreatedAt:      title.CreatedAt,
		UpdatedAt:      title.UpdatedAt,
	}
}

// MapTitlesToListResponse converts domain titles to a list response.
func MapTitlesToListResponse(titles []*stockDomain.TitleStock) ListTitlesResponse {
	data := make([]TitleResponse, 0, len(titles))
	for _, title := range titles {
		data = append(data, MapTitleToResponse(title))
	}
	return ListTitlesResponse{Data: data}
}
