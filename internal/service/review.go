package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/event"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/slug"
)

// ReviewService stores reviews and keeps firm aggregates in step with them.
type ReviewService struct {
	store    repository.Store
	cache    repository.FirmCache
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service. cache may be nil.
func NewReviewService(store repository.Store, cache repository.FirmCache, producer *event.Producer, metrics *Metrics, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		store:    store,
		cache:    cache,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitReviewInput holds the parameters for submitting a review.
type SubmitReviewInput struct {
	AuthorID          *string
	FirmName          string
	FirmWebsite       string
	Ratings           domain.Ratings
	ReviewText        string
	CompanyName       string
	CompanyWebsite    string
	Industry          string
	Role              string
	CompanyLocation   string
	FundingStage      string
	InvestmentAmount  string
	YearOfInteraction *int
	IsAnonymous       *bool
}

func validateRatings(r domain.Ratings) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"ratings.responsiveness", r.Responsiveness},
		{"ratings.fairness", r.Fairness},
		{"ratings.support", r.Support},
	} {
		if f.value < domain.MinRating || f.value > domain.MaxRating {
			return apperrors.InvalidInput(fmt.Sprintf("%s must be between %g and %g", f.name, domain.MinRating, domain.MaxRating))
		}
	}
	return nil
}

// Submit stores a review and recomputes its firm's aggregate in the same
// transaction. The firm is created on first mention, keyed by the slug of
// FirmName. The returned firm carries the aggregate including this review.
func (s *ReviewService) Submit(ctx context.Context, input *SubmitReviewInput) (*domain.Review, *domain.Firm, error) {
	name := strings.TrimSpace(input.FirmName)
	if name == "" {
		return nil, nil, apperrors.InvalidInput("firmName is required")
	}
	firmSlug := slug.Generate(name)
	if firmSlug == "" {
		return nil, nil, apperrors.InvalidInput("firmName must contain at least one letter or digit")
	}
	if err := validateRatings(input.Ratings); err != nil {
		return nil, nil, err
	}
	text := strings.TrimSpace(input.ReviewText)
	if text == "" {
		return nil, nil, apperrors.InvalidInput("reviewText is required")
	}

	now := s.now()
	anonymous := true
	if input.IsAnonymous != nil {
		anonymous = *input.IsAnonymous
	}
	review := &domain.Review{
		ID:                uuid.New().String(),
		AuthorID:          input.AuthorID,
		Ratings:           input.Ratings,
		ReviewText:        text,
		CompanyName:       strings.TrimSpace(input.CompanyName),
		CompanyWebsite:    strings.TrimSpace(input.CompanyWebsite),
		Industry:          strings.TrimSpace(input.Industry),
		Role:              strings.TrimSpace(input.Role),
		CompanyLocation:   strings.TrimSpace(input.CompanyLocation),
		FundingStage:      strings.TrimSpace(input.FundingStage),
		InvestmentAmount:  strings.TrimSpace(input.InvestmentAmount),
		YearOfInteraction: input.YearOfInteraction,
		IsAnonymous:       anonymous,
		CreatedAt:         now,
	}

	var (
		firm    *domain.Firm
		created bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ensured, isNew, err := repos.Firms.EnsureBySlug(ctx, &domain.Firm{
			ID:        uuid.New().String(),
			Name:      name,
			Slug:      firmSlug,
			Website:   strings.TrimSpace(input.FirmWebsite),
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("resolve firm: %w", err)
		}
		created = isNew

		locked, err := repos.Firms.LockByID(ctx, ensured.ID)
		if err != nil {
			return fmt.Errorf("lock firm: %w", err)
		}

		review.FirmID = locked.ID
		if err := repos.Reviews.Create(ctx, review); err != nil {
			return fmt.Errorf("create review: %w", err)
		}

		if err := recomputeAggregate(ctx, repos, locked, now, s.metrics); err != nil {
			return err
		}
		firm = locked
		return nil
	})
	if err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("submit review: %w", err))
	}

	review.FirmName, review.FirmSlug = firm.Name, firm.Slug
	s.metrics.reviewsSubmitted.Inc()
	s.afterAggregateChange(ctx, firm)

	if err := s.producer.PublishReviewCreated(ctx, review, firm); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("firm_id", firm.ID),
		slog.String("firm_slug", firm.Slug),
		slog.Bool("firm_created", created),
		slog.Int("total_reviews", firm.TotalReviews),
	)

	return review, firm, nil
}

// afterAggregateChange refreshes the cache entry and announces the new
// aggregate. Failures are logged; the write has already committed.
func (s *ReviewService) afterAggregateChange(ctx context.Context, firm *domain.Firm) {
	refreshCachedFirm(ctx, s.cache, firm, s.logger)
	if err := s.producer.PublishFirmRatingUpdated(ctx, firm); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish firm.rating_updated event",
			slog.String("firm_id", firm.ID),
			slog.String("error", err.Error()),
		)
	}
}

// List returns public previews of reviews matching the filter.
func (s *ReviewService) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.ReviewPreview, int, error) {
	filter.AuthorID = nil
	reviews, total, err := s.store.Repos().Reviews.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(fmt.Errorf("list reviews: %w", err))
	}
	return domain.Previews(reviews), total, nil
}

// ListByAuthor returns the full reviews written by a user.
func (s *ReviewService) ListByAuthor(ctx context.Context, authorID string, page, perPage int) ([]domain.Review, int, error) {
	reviews, total, err := s.store.Repos().Reviews.List(ctx, repository.ReviewFilter{
		AuthorID: &authorID,
		Sort:     domain.ReviewSortNewest,
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		return nil, 0, apperrors.Internal(fmt.Errorf("list reviews by author: %w", err))
	}
	return reviews, total, nil
}

// recomputeAggregate rebuilds firm's aggregate from every stored review and
// writes it. The caller holds the firm's row lock.
func recomputeAggregate(ctx context.Context, repos repository.Repositories, firm *domain.Firm, now time.Time, metrics *Metrics) error {
	start := time.Now()
	defer func() { metrics.recomputeDuration.Observe(time.Since(start).Seconds()) }()

	ratings, err := repos.Reviews.RatingsByFirm(ctx, firm.ID)
	if err != nil {
		return fmt.Errorf("load firm ratings: %w", err)
	}

	firm.Apply(domain.ComputeAggregate(ratings), now)
	if err := repos.Firms.UpdateAggregate(ctx, firm); err != nil {
		return fmt.Errorf("update firm aggregate: %w", err)
	}
	return nil
}

// refreshCachedFirm offers firm to the cache, which keeps whichever snapshot
// has the higher aggregate version. A failed write evicts the entry.
func refreshCachedFirm(ctx context.Context, cache repository.FirmCache, firm *domain.Firm, logger *slog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Set(ctx, firm); err != nil {
		logger.WarnContext(ctx, "failed to refresh firm cache",
			slog.String("firm_slug", firm.Slug),
			slog.String("error", err.Error()),
		)
		if err := cache.Delete(ctx, firm.Slug); err != nil && !errors.Is(err, context.Canceled) {
			logger.WarnContext(ctx, "failed to evict firm cache entry",
				slog.String("firm_slug", firm.Slug),
				slog.String("error", err.Error()),
			)
		}
	}
}
