package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{"defaults", "", Params{Page: 1, Limit: 10, Offset: 0}},
		{"explicit", "?page=3&limit=5", Params{Page: 3, Limit: 5, Offset: 10}},
		{"capped", "?limit=500", Params{Page: 1, Limit: MaxLimit, Offset: 0}},
		{"garbage", "?page=abc&limit=-4", Params{Page: 1, Limit: 10, Offset: 0}},
		{"zero page", "?page=0", Params{Page: 1, Limit: 10, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/reviews"+tt.query, nil)
			assert.Equal(t, tt.want, FromRequest(r, 10))
		})
	}
}
