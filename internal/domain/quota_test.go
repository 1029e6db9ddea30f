package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		// 2026-04-01 01:00 in UTC+3 is still March in UTC.
		{time.Date(2026, 4, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PeriodStart(tt.in))
	}

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), NextPeriodStart(time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)))
}

func TestQuotaPolicy_Status(t *testing.T) {
	p := QuotaPolicy{FreeMonthlyViews: 6}
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	free := p.Status(PlanFree, 4, now)
	assert.Equal(t, Remaining{Count: 2}, free.RemainingViews)
	assert.False(t, free.HasReachedLimit)
	require.NotNil(t, free.MonthlyLimit)
	assert.Equal(t, 6, *free.MonthlyLimit)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), free.ResetsAt)

	full := p.Status(PlanFree, 6, now)
	assert.True(t, full.HasReachedLimit)
	assert.Equal(t, 0, full.RemainingViews.Count)

	premium := p.Status(PlanPremium, 40, now)
	assert.True(t, premium.IsPremium)
	assert.True(t, premium.RemainingViews.Unlimited)
	assert.False(t, premium.HasReachedLimit)
	assert.Nil(t, premium.MonthlyLimit)
}

func TestRemaining_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		A Remaining `json:"a"`
		B Remaining `json:"b"`
	}{Remaining{Count: 3}, Remaining{Unlimited: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":"unlimited"}`, string(raw))

	var r Remaining
	require.NoError(t, json.Unmarshal([]byte(`"unlimited"`), &r))
	assert.True(t, r.Unlimited)
	require.NoError(t, json.Unmarshal([]byte(`5`), &r))
	assert.Equal(t, Remaining{Count: 5}, r)
}

func TestPlan_IsValid(t *testing.T) {
	assert.True(t, PlanFree.IsValid())
	assert.True(t, PlanPremium.IsValid())
	assert.False(t, Plan("enterprise").IsValid())
}

func TestUser_MergeProfile(t *testing.T) {
	u := &User{Email: "old@fund.vc", FirstName: "Ada", ImageURL: "https://img/1", Plan: PlanPremium}

	changed := u.MergeProfile(Profile{Email: "new@fund.vc", FirstName: "", LastName: "Lovelace"})
	assert.True(t, changed)
	assert.Equal(t, "new@fund.vc", u.Email)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "Lovelace", u.LastName)
	assert.Equal(t, "https://img/1", u.ImageURL)
	assert.Equal(t, PlanPremium, u.Plan)

	assert.False(t, u.MergeProfile(Profile{FirstName: "  "}))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "héllo…", Excerpt("héllo world", 5))
}

func TestReview_Preview(t *testing.T) {
	r := Review{ID: "r1", ReviewText: "They replied within a day and the term sheet was fair.", Ratings: Ratings{5, 4, 3}}
	p := r.Preview()
	assert.Equal(t, 4.0, p.AverageRating)
	assert.Equal(t, r.ReviewText, p.Excerpt)

	long := Review{ReviewText: strings.Repeat("a", 200)}
	assert.Equal(t, ExcerptRunes+1, utf8.RuneCountInString(long.Preview().Excerpt))
}
