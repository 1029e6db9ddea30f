package domain

import (
	"encoding/json"
	"time"
)

// DefaultFreeMonthlyViews is the free plan's monthly allowance of full review reads.
const DefaultFreeMonthlyViews = 6

// ReviewView is one admitted full read of a review. Every admitted read is
// recorded, including repeat reads of the same review.
type ReviewView struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	ReviewID string    `json:"reviewId"`
	ViewedAt time.Time `json:"viewedAt"`
}

// PeriodStart is the first instant of t's calendar month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextPeriodStart is the first instant of the month after t's, in UTC.
func NextPeriodStart(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}

// QuotaPolicy decides how many views a plan gets per month.
type QuotaPolicy struct {
	FreeMonthlyViews int
}

// Limit returns the plan's monthly allowance; ok is false for unlimited plans.
func (p QuotaPolicy) Limit(plan Plan) (limit int, ok bool) {
	if plan == PlanPremium {
		return 0, false
	}
	return p.FreeMonthlyViews, true
}

// Remaining is a view count or "unlimited".
type Remaining struct {
	Unlimited bool
	Count     int
}

// MarshalJSON encodes a number, or the string "unlimited".
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return json.Marshal(r.Count)
}

// UnmarshalJSON accepts what MarshalJSON produces.
func (r *Remaining) UnmarshalJSON(b []byte) error {
	if string(b) == `"unlimited"` {
		*r = Remaining{Unlimited: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = Remaining{Count: n}
	return nil
}

// QuotaStatus is a user's position in the current monthly window.
type QuotaStatus struct {
	Plan            Plan      `json:"plan"`
	ViewsThisMonth  int       `json:"viewsThisMonth"`
	MonthlyLimit    *int      `json:"monthlyLimit"`
	RemainingViews  Remaining `json:"remainingViews"`
	HasReachedLimit bool      `json:"hasReachedLimit"`
	IsPremium       bool      `json:"isPremium"`
	PeriodStart     time.Time `json:"periodStart"`
	ResetsAt        time.Time `json:"resetsAt"`
}

// Status builds the quota status for a plan with used views in the window
// containing now.
func (p QuotaPolicy) Status(plan Plan, used int, now time.Time) QuotaStatus {
	st := QuotaStatus{
		Plan:           plan,
		ViewsThisMonth: used,
		IsPremium:      plan == PlanPremium,
		PeriodStart:    PeriodStart(now),
		ResetsAt:       NextPeriodStart(now),
	}
	limit, limited := p.Limit(plan)
	if !limited {
		st.RemainingViews = Remaining{Unlimited: true}
		return st
	}
	st.MonthlyLimit = &limit
	st.RemainingViews = Remaining{Count: max(limit-used, 0)}
	st.HasReachedLimit = used >= limit
	return st
}

// Decision is the outcome of a gated read.
type Decision int

const (
	Denied Decision = iota
	Admitted
)

func (d Decision) String() string {
	if d == Admitted {
		return "admitted"
	}
	return "denied"
}
