package domain

import (
	"time"
	"unicode/utf8"
)

// ExcerptRunes is the length of the public preview of a review's text.
const ExcerptRunes = 160

// Review is an immutable founder review of a firm. FirmName and FirmSlug are
// read-side joins and are not stored on the review.
type Review struct {
	ID                string    `json:"id"`
	AuthorID          *string   `json:"-"`
	FirmID            string    `json:"firmId"`
	FirmName          string    `json:"firmName"`
	FirmSlug          string    `json:"firmSlug"`
	Ratings           Ratings   `json:"ratings"`
	ReviewText        string    `json:"reviewText"`
	CompanyName       string    `json:"companyName,omitempty"`
	CompanyWebsite    string    `json:"companyWebsite,omitempty"`
	Industry          string    `json:"industry,omitempty"`
	Role              string    `json:"role,omitempty"`
	CompanyLocation   string    `json:"companyLocation,omitempty"`
	FundingStage      string    `json:"fundingStage,omitempty"`
	InvestmentAmount  string    `json:"investmentAmount,omitempty"`
	YearOfInteraction *int      `json:"yearOfInteraction,omitempty"`
	IsAnonymous       bool      `json:"isAnonymous"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ReviewPreview is what anyone may see without spending a view.
type ReviewPreview struct {
	ID                string    `json:"id"`
	FirmID            string    `json:"firmId"`
	FirmName          string    `json:"firmName"`
	FirmSlug          string    `json:"firmSlug"`
	Ratings           Ratings   `json:"ratings"`
	AverageRating     float64   `json:"averageRating"`
	Excerpt           string    `json:"excerpt"`
	Industry          string    `json:"industry,omitempty"`
	FundingStage      string    `json:"fundingStage,omitempty"`
	YearOfInteraction *int      `json:"yearOfInteraction,omitempty"`
	IsAnonymous       bool      `json:"isAnonymous"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Preview strips the review down to its public fields.
func (r *Review) Preview() ReviewPreview {
	return ReviewPreview{
		ID:                r.ID,
		FirmID:            r.FirmID,
		FirmName:          r.FirmName,
		FirmSlug:          r.FirmSlug,
		Ratings:           r.Ratings,
		AverageRating:     r.Ratings.Average(),
		Excerpt:           Excerpt(r.ReviewText, ExcerptRunes),
		Industry:          r.Industry,
		FundingStage:      r.FundingStage,
		YearOfInteraction: r.YearOfInteraction,
		IsAnonymous:       r.IsAnonymous,
		CreatedAt:         r.CreatedAt,
	}
}

// Previews maps Preview over reviews.
func Previews(reviews []Review) []ReviewPreview {
	out := make([]ReviewPreview, len(reviews))
	for i := range reviews {
		out[i] = reviews[i].Preview()
	}
	return out
}

// Excerpt truncates s to at most n runes, marking the cut with an ellipsis.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// ReviewSort orders review listings.
type ReviewSort string

const (
	ReviewSortNewest  ReviewSort = "newest"
	ReviewSortHighest ReviewSort = "highest"
)

// ParseReviewSort returns the sort for s, defaulting to newest.
func ParseReviewSort(s string) (ReviewSort, bool) {
	switch ReviewSort(s) {
	case "", ReviewSortNewest:
		return ReviewSortNewest, true
	case ReviewSortHighest:
		return ReviewSortHighest, true
	}
	return "", false
}
