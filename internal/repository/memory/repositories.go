package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

// ---------------------------------------------------------------------------
// Firms
// ---------------------------------------------------------------------------

// FirmRepository implements repository.FirmRepository in memory.
type FirmRepository struct {
	h handle
}

var _ repository.FirmRepository = (*FirmRepository)(nil)

// EnsureBySlug inserts firm unless its slug is taken and returns the stored firm.
func (r *FirmRepository) EnsureBySlug(_ context.Context, firm *domain.Firm) (*domain.Firm, bool, error) {
	var (
		stored  domain.Firm
		created bool
	)
	err := r.h.write(func(st *state) error {
		if id, ok := st.firmIDBySlug[firm.Slug]; ok {
			stored = st.firms[id]
			return nil
		}
		stored = domain.Firm{
			ID:        firm.ID,
			Name:      firm.Name,
			Slug:      firm.Slug,
			Website:   firm.Website,
			CreatedAt: firm.CreatedAt,
			UpdatedAt: firm.CreatedAt,
		}
		st.firms[stored.ID] = stored
		st.firmIDBySlug[stored.Slug] = stored.ID
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// GetBySlug retrieves a firm by slug.
func (r *FirmRepository) GetBySlug(_ context.Context, slug string) (*domain.Firm, error) {
	var (
		f  domain.Firm
		ok bool
	)
	r.h.read(func(st *state) {
		var id string
		if id, ok = st.firmIDBySlug[slug]; ok {
			f = st.firms[id]
		}
	})
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &f, nil
}

// GetByID retrieves a firm by id.
func (r *FirmRepository) GetByID(_ context.Context, id string) (*domain.Firm, error) {
	var (
		f  domain.Firm
		ok bool
	)
	r.h.read(func(st *state) { f, ok = st.firms[id] })
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &f, nil
}

// LockByID is GetByID; transactions already hold the store lock.
func (r *FirmRepository) LockByID(ctx context.Context, id string) (*domain.Firm, error) {
	return r.GetByID(ctx, id)
}

// UpdateAggregate writes the derived rating fields.
func (r *FirmRepository) UpdateAggregate(_ context.Context, firm *domain.Firm) error {
	return r.h.write(func(st *state) error {
		f, ok := st.firms[firm.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		f.AvgResponsiveness = firm.AvgResponsiveness
		f.AvgFairness = firm.AvgFairness
		f.AvgSupport = firm.AvgSupport
		f.TotalReviews = firm.TotalReviews
		f.LastReviewDate = firm.LastReviewDate
		f.UpdatedAt = firm.UpdatedAt
		f.AggregateVersion++
		st.firms[f.ID] = f
		firm.AggregateVersion = f.AggregateVersion
		return nil
	})
}

// List filters, sorts and pages firms.
func (r *FirmRepository) List(_ context.Context, filter repository.FirmFilter) ([]domain.Firm, int, error) {
	var firms []domain.Firm
	search := ""
	if filter.Search != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.Search))
	}
	r.h.read(func(st *state) {
		for _, f := range st.firms {
			if search != "" && !strings.Contains(strings.ToLower(f.Name), search) {
				continue
			}
			firms = append(firms, f)
		}
	})

	slices.SortFunc(firms, firmCompare(filter.Sort))
	return paginate(firms, filter.Page, filter.PerPage), len(firms), nil
}

func firmCompare(sort domain.FirmSort) func(a, b domain.Firm) int {
	byName := func(a, b domain.Firm) int { return cmp.Compare(a.Name, b.Name) }
	switch sort {
	case domain.FirmSortName:
		return byName
	case domain.FirmSortReviews:
		return func(a, b domain.Firm) int {
			return cmp.Or(cmp.Compare(b.TotalReviews, a.TotalReviews), byName(a, b))
		}
	case domain.FirmSortRecent:
		return func(a, b domain.Firm) int {
			return cmp.Or(compareRecent(a.LastReviewDate, b.LastReviewDate), byName(a, b))
		}
	default:
		return func(a, b domain.Firm) int {
			sa := a.AvgResponsiveness + a.AvgFairness + a.AvgSupport
			sb := b.AvgResponsiveness + b.AvgFairness + b.AvgSupport
			return cmp.Or(cmp.Compare(sb, sa), cmp.Compare(b.TotalReviews, a.TotalReviews), byName(a, b))
		}
	}
}

// compareRecent orders newer first with nil last.
func compareRecent(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

// ReviewRepository implements repository.ReviewRepository in memory.
type ReviewRepository struct {
	h handle
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// Create inserts a review for an existing firm.
func (r *ReviewRepository) Create(_ context.Context, review *domain.Review) error {
	return r.h.write(func(st *state) error {
		if _, ok := st.firms[review.FirmID]; !ok {
			return fmt.Errorf("insert review: firm %s does not exist", review.FirmID)
		}
		if _, dup := st.reviews[review.ID]; dup {
			return fmt.Errorf("insert review: duplicate id %s", review.ID)
		}
		stored := *review
		stored.FirmName, stored.FirmSlug = "", ""
		st.reviews[stored.ID] = stored
		return nil
	})
}

// GetByID retrieves a review joined with its firm.
func (r *ReviewRepository) GetByID(_ context.Context, id string) (*domain.Review, error) {
	var (
		rv domain.Review
		ok bool
	)
	r.h.read(func(st *state) {
		if rv, ok = st.reviews[id]; ok {
			joinFirm(st, &rv)
		}
	})
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rv, nil
}

// RatingsByFirm returns the ratings of every review of the firm.
func (r *ReviewRepository) RatingsByFirm(_ context.Context, firmID string) ([]domain.Ratings, error) {
	var ratings []domain.Ratings
	r.h.read(func(st *state) {
		for _, rv := range st.reviews {
			if rv.FirmID == firmID {
				ratings = append(ratings, rv.Ratings)
			}
		}
	})
	return ratings, nil
}

// List filters, sorts and pages reviews.
func (r *ReviewRepository) List(_ context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	var reviews []domain.Review
	r.h.read(func(st *state) {
		for _, rv := range st.reviews {
			joinFirm(st, &rv)
			if matchesReview(rv, filter) {
				reviews = append(reviews, rv)
			}
		}
	})

	slices.SortFunc(reviews, func(a, b domain.Review) int {
		byTime := cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
		if filter.Sort == domain.ReviewSortHighest {
			sa := a.Ratings.Responsiveness + a.Ratings.Fairness + a.Ratings.Support
			sb := b.Ratings.Responsiveness + b.Ratings.Fairness + b.Ratings.Support
			return cmp.Or(cmp.Compare(sb, sa), byTime)
		}
		return byTime
	})
	return paginate(reviews, filter.Page, filter.PerPage), len(reviews), nil
}

func joinFirm(st *state, rv *domain.Review) {
	f := st.firms[rv.FirmID]
	rv.FirmName, rv.FirmSlug = f.Name, f.Slug
}

func matchesReview(rv domain.Review, f repository.ReviewFilter) bool {
	switch {
	case f.FirmID != nil && rv.FirmID != *f.FirmID:
		return false
	case f.FirmSlug != nil && rv.FirmSlug != *f.FirmSlug:
		return false
	case f.AuthorID != nil && (rv.AuthorID == nil || *rv.AuthorID != *f.AuthorID):
		return false
	case f.Industry != nil && !strings.EqualFold(rv.Industry, *f.Industry):
		return false
	case f.Year != nil && (rv.YearOfInteraction == nil || *rv.YearOfInteraction != *f.Year):
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// UserRepository implements repository.UserRepository in memory.
type UserRepository struct {
	h handle
}

var _ repository.UserRepository = (*UserRepository)(nil)

// Upsert inserts the user or merges non-empty profile fields into the stored one.
func (r *UserRepository) Upsert(_ context.Context, user *domain.User) (*domain.User, bool, error) {
	var (
		stored  domain.User
		created bool
	)
	err := r.h.write(func(st *state) error {
		if id, ok := st.userIDByExtern[user.ExternalID]; ok {
			stored = st.users[id]
			stored.MergeProfile(user.Profile())
			stored.UpdatedAt = user.CreatedAt
			st.users[id] = stored
			return nil
		}
		stored = *user
		stored.UpdatedAt = user.CreatedAt
		st.users[stored.ID] = stored
		st.userIDByExtern[stored.ExternalID] = stored.ID
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// GetByExternalID retrieves a user by identity provider id.
func (r *UserRepository) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	var (
		u  domain.User
		ok bool
	)
	r.h.read(func(st *state) {
		var id string
		if id, ok = st.userIDByExtern[externalID]; ok {
			u = st.users[id]
		}
	})
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

// UpdatePlan sets the user's plan.
func (r *UserRepository) UpdatePlan(_ context.Context, id string, plan domain.Plan, at time.Time) (*domain.User, error) {
	var u domain.User
	err := r.h.write(func(st *state) error {
		var ok bool
		if u, ok = st.users[id]; !ok {
			return apperrors.ErrNotFound
		}
		u.Plan = plan
		u.UpdatedAt = at
		st.users[id] = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ---------------------------------------------------------------------------
// Quotas
// ---------------------------------------------------------------------------

// QuotaRepository implements repository.QuotaRepository in memory.
type QuotaRepository struct {
	h handle
}

var _ repository.QuotaRepository = (*QuotaRepository)(nil)

// TryConsume increments the period counter unless it reached limit.
func (r *QuotaRepository) TryConsume(_ context.Context, userID string, period time.Time, limit int) (int, bool, error) {
	var (
		used int
		ok   bool
	)
	err := r.h.write(func(st *state) error {
		key := periodKey(userID, period)
		used = st.quotas[key]
		if limit > 0 && used >= limit {
			return nil
		}
		used++
		st.quotas[key] = used
		ok = true
		return nil
	})
	return used, ok, err
}

// Used returns the period counter.
func (r *QuotaRepository) Used(_ context.Context, userID string, period time.Time) (int, error) {
	var used int
	r.h.read(func(st *state) { used = st.quotas[periodKey(userID, period)] })
	return used, nil
}

// AppendView records an admitted read.
func (r *QuotaRepository) AppendView(_ context.Context, view *domain.ReviewView) error {
	return r.h.write(func(st *state) error {
		if _, ok := st.reviews[view.ReviewID]; !ok {
			return fmt.Errorf("append review view: review %s does not exist", view.ReviewID)
		}
		st.views = append(st.views, *view)
		return nil
	})
}

// CountViews counts the user's recorded reads at or after since.
func (r *QuotaRepository) CountViews(_ context.Context, userID string, since time.Time) (int, error) {
	var n int
	r.h.read(func(st *state) {
		for _, v := range st.views {
			if v.UserID == userID && !v.ViewedAt.Before(since) {
				n++
			}
		}
	})
	return n, nil
}
