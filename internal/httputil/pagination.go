package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"
)

// Pagination bounds for list endpoints.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type pageQuery struct {
	Offset *int `form:"offset" json:"offset"`
	Limit  *int `form:"limit" json:"limit"`
}

func (q pageQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Offset, validation.Min(0)),
		validation.Field(&q.Limit, validation.By(limitInRange)),
	)
}

// limitInRange is explicit because threshold rules skip zero values.
func limitInRange(value any) error {
	limit, _ := value.(*int)
	if limit != nil && (*limit < 1 || *limit > MaxLimit) {
		return validation.NewError("validation_limit_range", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	return nil
}

// ParsePagination reads offset and limit from the query string. Offset defaults
// to 0 and limit to DefaultLimit.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return 0, 0, fmt.Errorf("invalid pagination parameters: offset and limit must be integers")
	}
	if err := q.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalid pagination parameters: %w", err)
	}

	offset, limit = 0, DefaultLimit
	if q.Offset != nil {
		offset = *q.Offset
	}
	if q.Limit != nil {
		limit = *q.Limit
	}
	return offset, limit, nil
}

// ParseInt64Param parses a positive integer path parameter such as a title id.
func ParseInt64Param(c *gin.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid %s parameter: must be a positive integer", name)
	}
	return value, nil
}
