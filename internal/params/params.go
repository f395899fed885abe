package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination holds the requested page and, after ComputeMeta, the totals.
//
//	/entries?page=2&limit=20 -> Pagination{Limit: 20, Page: 2, Offset: 20}
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads ?limit= and ?page=. Bad values fall back to the
// defaults; limit is capped at MaxLimit.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: DefaultLimit,
		Page:  1,
	}

	if limit, ok := Int(q, "limit"); ok {
		switch {
		case limit <= 0:
			p.Limit = DefaultLimit
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}

	if page, ok := Int(q, "page"); ok && page > 0 {
		p.Page = page
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta fills the totals once the row count is known.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

func String(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

func Int(q url.Values, key string) (int, bool) {
	v, err := strconv.Atoi(String(q, key))
	return v, err == nil
}

func Float(q url.Values, key string) (float64, bool) {
	v, err := strconv.ParseFloat(String(q, key), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Bool accepts the strconv.ParseBool spellings; anything else is absent.
func Bool(q url.Values, key string) (bool, bool) {
	v, err := strconv.ParseBool(String(q, key))
	return v, err == nil
}
