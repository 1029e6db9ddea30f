package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

var now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func ratings(resp, fair, supp float64) domain.Ratings {
	return domain.Ratings{Responsiveness: resp, Fairness: fair, Support: supp}
}

func seedFirm(t *testing.T, s *Store, id, name, slug string) *domain.Firm {
	t.Helper()
	f, created, err := s.Repos().Firms.EnsureBySlug(context.Background(), &domain.Firm{
		ID: id, Name: name, Slug: slug, CreatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func TestWithinTx_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("aggregate update failed")

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, _, err := repos.Firms.EnsureBySlug(ctx, &domain.Firm{ID: "f1", Name: "Acme", Slug: "acme", CreatedAt: now}); err != nil {
			return err
		}
		if err := repos.Reviews.Create(ctx, &domain.Review{ID: "r1", FirmID: "f1", Ratings: ratings(5, 5, 5)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Repos().Firms.GetBySlug(ctx, "acme")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Repos().Reviews.GetByID(ctx, "r1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWithinTx_CommitPublishesWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		_, _, err := repos.Firms.EnsureBySlug(ctx, &domain.Firm{ID: "f1", Name: "Acme", Slug: "acme", CreatedAt: now})
		return err
	})
	require.NoError(t, err)

	f, err := s.Repos().Firms.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithinTx(ctx, func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFirmRepository_EnsureBySlug_Converges(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var created atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	for i := range 20 {
		g.Go(func() error {
			_, c, err := s.Repos().Firms.EnsureBySlug(ctx, &domain.Firm{
				ID: fmt.Sprintf("f%d", i), Name: "Acme Ventures", Slug: "acme-ventures", CreatedAt: now,
			})
			if c {
				created.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), created.Load())

	firms, total, err := s.Repos().Firms.List(context.Background(), repository.FirmFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, firms, 1)
}

func TestFirmRepository_UpdateAggregateBumpsVersion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	f := seedFirm(t, s, "fa", "Alpha Capital", "alpha-capital")
	assert.Zero(t, f.AggregateVersion)

	for want := int64(1); want <= 3; want++ {
		f.Apply(domain.Aggregate{AvgResponsiveness: 4, AvgFairness: 4, AvgSupport: 4, TotalReviews: int(want)}, now)
		require.NoError(t, s.Repos().Firms.UpdateAggregate(ctx, f))
		assert.Equal(t, want, f.AggregateVersion)
	}

	stored, err := s.Repos().Firms.GetBySlug(ctx, "alpha-capital")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.AggregateVersion)
}

func TestFirmRepository_ListSortAndSearch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()

	a := seedFirm(t, s, "fa", "Alpha Capital", "alpha-capital")
	b := seedFirm(t, s, "fb", "Beta Partners", "beta-partners")
	seedFirm(t, s, "fc", "Gamma Capital", "gamma-capital")

	a.Apply(domain.Aggregate{AvgResponsiveness: 3, AvgFairness: 3, AvgSupport: 3, TotalReviews: 5}, now.Add(-time.Hour))
	b.Apply(domain.Aggregate{AvgResponsiveness: 5, AvgFairness: 4, AvgSupport: 4, TotalReviews: 1}, now)
	require.NoError(t, repos.Firms.UpdateAggregate(ctx, a))
	require.NoError(t, repos.Firms.UpdateAggregate(ctx, b))

	tests := []struct {
		sort domain.FirmSort
		want []string
	}{
		{domain.FirmSortRating, []string{"fb", "fa", "fc"}},
		{domain.FirmSortName, []string{"fa", "fb", "fc"}},
		{domain.FirmSortReviews, []string{"fa", "fb", "fc"}},
		{domain.FirmSortRecent, []string{"fb", "fa", "fc"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			firms, _, err := repos.Firms.List(ctx, repository.FirmFilter{Sort: tt.sort})
			require.NoError(t, err)
			var ids []string
			for _, f := range firms {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	search := "CAPITAL"
	firms, total, err := repos.Firms.List(ctx, repository.FirmFilter{Search: &search, Sort: domain.FirmSortName, PerPage: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, firms, 1)
	assert.Equal(t, "Gamma Capital", firms[0].Name)
}

func TestReviewRepository_ListFiltersAndJoin(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	seedFirm(t, s, "f1", "Acme Ventures", "acme-ventures")
	seedFirm(t, s, "f2", "Other Fund", "other-fund")

	author := "u1"
	y2023, y2024 := 2023, 2024
	for _, r := range []domain.Review{
		{ID: "r1", FirmID: "f1", AuthorID: &author, Ratings: ratings(3, 3, 3), Industry: "Fintech", YearOfInteraction: &y2023, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "r2", FirmID: "f1", Ratings: ratings(5, 5, 4), Industry: "fintech", YearOfInteraction: &y2024, CreatedAt: now.Add(-time.Hour)},
		{ID: "r3", FirmID: "f2", AuthorID: &author, Ratings: ratings(1, 2, 1), Industry: "Health", CreatedAt: now},
	} {
		require.NoError(t, repos.Reviews.Create(ctx, &r))
	}

	all, total, err := repos.Reviews.List(ctx, repository.ReviewFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "r3", all[0].ID)
	assert.Equal(t, "other-fund", all[0].FirmSlug)

	slug := "acme-ventures"
	highest, _, err := repos.Reviews.List(ctx, repository.ReviewFilter{FirmSlug: &slug, Sort: domain.ReviewSortHighest})
	require.NoError(t, err)
	require.Len(t, highest, 2)
	assert.Equal(t, "r2", highest[0].ID)

	industry := "FINTECH"
	byIndustry, _, err := repos.Reviews.List(ctx, repository.ReviewFilter{Industry: &industry, Year: &y2023})
	require.NoError(t, err)
	require.Len(t, byIndustry, 1)
	assert.Equal(t, "r1", byIndustry[0].ID)

	mine, total, err := repos.Reviews.List(ctx, repository.ReviewFilter{AuthorID: &author})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 2)

	firmRatings, err := repos.Reviews.RatingsByFirm(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, firmRatings, 2)
}

func TestReviewRepository_CreateRequiresFirm(t *testing.T) {
	err := NewStore().Repos().Reviews.Create(context.Background(), &domain.Review{ID: "r1", FirmID: "missing"})
	assert.Error(t, err)
}

func TestUserRepository_UpsertMerges(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	users := s.Repos().Users

	first, created, err := users.Upsert(ctx, &domain.User{
		ID: "u1", ExternalID: "ext_1", Email: "a@x.io", FirstName: "Ada", Plan: domain.PlanFree, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, created)

	_, err = users.UpdatePlan(ctx, first.ID, domain.PlanPremium, now)
	require.NoError(t, err)

	again, created, err := users.Upsert(ctx, &domain.User{
		ID: "u2", ExternalID: "ext_1", Email: "", FirstName: "Ada", LastName: "Lovelace", Plan: domain.PlanFree, CreatedAt: now.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", again.ID)
	assert.Equal(t, "a@x.io", again.Email)
	assert.Equal(t, "Lovelace", again.LastName)
	assert.Equal(t, domain.PlanPremium, again.Plan)
	assert.Equal(t, now, again.CreatedAt)
}

func TestQuotaRepository_TryConsumeIsAtomic(t *testing.T) {
	s := NewStore()
	quotas := s.Repos().Quotas
	period := domain.PeriodStart(now)

	var admitted atomic.Int32
	var g errgroup.Group
	for range 25 {
		g.Go(func() error {
			_, ok, err := quotas.TryConsume(context.Background(), "u1", period, 6)
			if ok {
				admitted.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(6), admitted.Load())

	used, err := quotas.Used(context.Background(), "u1", period)
	require.NoError(t, err)
	assert.Equal(t, 6, used)

	next, err := quotas.Used(context.Background(), "u1", domain.NextPeriodStart(now))
	require.NoError(t, err)
	assert.Zero(t, next)
}

func TestQuotaRepository_UnlimitedAndLedger(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedFirm(t, s, "f1", "Acme", "acme")
	repos := s.Repos()
	require.NoError(t, repos.Reviews.Create(ctx, &domain.Review{ID: "r1", FirmID: "f1", Ratings: ratings(4, 4, 4)}))

	for i := range 10 {
		used, ok, err := repos.Quotas.TryConsume(ctx, "u1", domain.PeriodStart(now), 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i+1, used)
		require.NoError(t, repos.Quotas.AppendView(ctx, &domain.ReviewView{
			ID: fmt.Sprintf("v%d", i), UserID: "u1", ReviewID: "r1", ViewedAt: now,
		}))
	}

	n, err := repos.Quotas.CountViews(ctx, "u1", domain.PeriodStart(now))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = repos.Quotas.CountViews(ctx, "u1", domain.NextPeriodStart(now))
	require.NoError(t, err)
	assert.Zero(t, n)
}
