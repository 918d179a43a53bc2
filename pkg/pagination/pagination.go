package pagination

import (
	"math"
	"strconv"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultPage is the first page
	DefaultPage = 1
	// DefaultLimit is the default number of items per page
	DefaultLimit = 10
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
)

// Params represents page based pagination
type Params struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// Normalize applies defaults and caps. Non-positive values fall back to the
// defaults and limit is capped at MaxLimit.
func Normalize(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// ParseParams reads page and limit from the query string. Unparsable values
// use the defaults.
func ParseParams(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return Normalize(page, limit)
}

// Offset returns the row offset of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// BuildMeta creates pagination metadata for responses
func BuildMeta(p Params, total int64) *common.Meta {
	meta := &common.Meta{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
	}
	if p.Limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return meta
}
