package pagination

import (
	"net/http"
	"strconv"
)

// MaxLimit caps the page size a client can request.
const MaxLimit = 100

// Params holds page/limit query parameters.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// FromRequest reads ?page= and ?limit= from r. Missing or invalid values fall
// back to page 1 and defaultLimit; limit is capped at MaxLimit.
func FromRequest(r *http.Request, defaultLimit int) Params {
	q := r.URL.Query()
	p := Params{Page: 1, Limit: defaultLimit}

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, MaxLimit)
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}
