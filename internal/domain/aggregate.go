package domain

import "math"

// Rating bounds, inclusive.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Ratings are one review's scores on the three dimensions.
type Ratings struct {
	Responsiveness float64 `json:"responsiveness"`
	Fairness       float64 `json:"fairness"`
	Support        float64 `json:"support"`
}

// Average is the review's own overall score, rounded to one decimal.
func (r Ratings) Average() float64 {
	return Round1((r.Responsiveness + r.Fairness + r.Support) / 3)
}

// Aggregate is a firm's rating summary.
type Aggregate struct {
	AvgResponsiveness float64
	AvgFairness       float64
	AvgSupport        float64
	TotalReviews      int
}

// ComputeAggregate derives the summary from every review of a firm. Each
// dimension is its arithmetic mean rounded to one decimal; an empty set
// yields zeros.
func ComputeAggregate(all []Ratings) Aggregate {
	if len(all) == 0 {
		return Aggregate{}
	}
	var resp, fair, supp float64
	for _, r := range all {
		resp += r.Responsiveness
		fair += r.Fairness
		supp += r.Support
	}
	n := float64(len(all))
	return Aggregate{
		AvgResponsiveness: roundMean(resp, n),
		AvgFairness:       roundMean(fair, n),
		AvgSupport:        roundMean(supp, n),
		TotalReviews:      len(all),
	}
}

// AvgRating is the mean of the three dimension averages rounded to one
// decimal, or 0 for a firm without reviews.
func (a Aggregate) AvgRating() float64 {
	if a.TotalReviews == 0 {
		return 0
	}
	tenths := math.Round(a.AvgResponsiveness*10) + math.Round(a.AvgFairness*10) + math.Round(a.AvgSupport*10)
	return math.Round(tenths/3) / 10
}

// roundMean scales before dividing so sums of half-star ratings stay exact.
func roundMean(sum, n float64) float64 {
	return math.Round(sum*10/n) / 10
}

// Round1 rounds half away from zero to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
