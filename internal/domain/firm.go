package domain

import (
	"encoding/json"
	"time"
)

// Firm is a venture-capital firm that founders review. Its avg* fields and
// TotalReviews are derived from the firm's reviews and only written by the
// aggregate recompute.
type Firm struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Slug              string     `json:"slug"`
	Website           string     `json:"website,omitempty"`
	AvgResponsiveness float64    `json:"avgResponsiveness"`
	AvgFairness       float64    `json:"avgFairness"`
	AvgSupport        float64    `json:"avgSupport"`
	TotalReviews      int        `json:"totalReviews"`
	LastReviewDate    *time.Time `json:"lastReviewDate,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	// AggregateVersion increases with every aggregate write. Caches compare
	// on it so that an older summary never replaces a newer one.
	AggregateVersion int64 `json:"-"`
}

// AvgRating is the overall score shown for the firm.
func (f *Firm) AvgRating() float64 {
	return f.Aggregate().AvgRating()
}

// Aggregate returns the stored summary.
func (f *Firm) Aggregate() Aggregate {
	return Aggregate{
		AvgResponsiveness: f.AvgResponsiveness,
		AvgFairness:       f.AvgFairness,
		AvgSupport:        f.AvgSupport,
		TotalReviews:      f.TotalReviews,
	}
}

// Apply copies a freshly computed summary onto the firm.
func (f *Firm) Apply(agg Aggregate, at time.Time) {
	f.AvgResponsiveness = agg.AvgResponsiveness
	f.AvgFairness = agg.AvgFairness
	f.AvgSupport = agg.AvgSupport
	f.TotalReviews = agg.TotalReviews
	f.LastReviewDate = &at
	f.UpdatedAt = at
}

// MarshalJSON adds the derived avgRating to the encoded firm.
func (f Firm) MarshalJSON() ([]byte, error) {
	type plain Firm
	return json.Marshal(struct {
		plain
		AvgRating float64 `json:"avgRating"`
	}{plain(f), f.AvgRating()})
}

// FirmSort orders firm listings.
type FirmSort string

const (
	FirmSortRating  FirmSort = "rating"
	FirmSortName    FirmSort = "name"
	FirmSortReviews FirmSort = "reviews"
	FirmSortRecent  FirmSort = "recent"
)

// ParseFirmSort returns the sort for s, defaulting to rating.
func ParseFirmSort(s string) (FirmSort, bool) {
	switch FirmSort(s) {
	case "", FirmSortRating:
		return FirmSortRating, true
	case FirmSortName, FirmSortReviews, FirmSortRecent:
		return FirmSort(s), true
	}
	return "", false
}
