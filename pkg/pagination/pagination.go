package pagination

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, or page/per_page, from the query string.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("per_page"))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Sort    string      `json:"sort,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// WithSort records the effective sort order on the response.
func (r *Response) WithSort(s Sort) *Response {
	r.Sort = s.String()
	return r
}

const descSuffix = "_desc"

// Sort is an ordering chosen from a fixed set of keys. Clients send the key
// for ascending order and key + "_desc" for descending.
type Sort struct {
	Key  string
	Desc bool
}

func (s Sort) String() string {
	if s.Desc {
		return s.Key + descSuffix
	}
	return s.Key
}

// ParseSort resolves raw against allowed keys. Empty or unknown values fall
// back to def.
func ParseSort(raw string, allowed []string, def Sort) Sort {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return def
	}
	s := Sort{Key: raw}
	if strings.HasSuffix(raw, descSuffix) {
		s = Sort{Key: strings.TrimSuffix(raw, descSuffix), Desc: true}
	}
	for _, k := range allowed {
		if k == s.Key {
			return s
		}
	}
	return def
}

// SortFromContext reads the "sort" query parameter.
func SortFromContext(c echo.Context, allowed []string, def Sort) Sort {
	return ParseSort(c.QueryParam("sort"), allowed, def)
}
