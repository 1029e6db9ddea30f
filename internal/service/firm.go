package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/event"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

// DefaultFirmReviewsPerPage is the number of review previews on a firm page.
const DefaultFirmReviewsPerPage = 5

// FirmService reads firms and repairs their aggregates.
type FirmService struct {
	store    repository.Store
	cache    repository.FirmCache
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewFirmService creates a new firm service. cache may be nil.
func NewFirmService(store repository.Store, cache repository.FirmCache, producer *event.Producer, metrics *Metrics, logger *slog.Logger) *FirmService {
	return &FirmService{
		store:    store,
		cache:    cache,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FirmDetail is a firm with one page of its review previews.
type FirmDetail struct {
	Firm         *domain.Firm
	Reviews      []domain.ReviewPreview
	ReviewsTotal int
}

// Get returns the firm with the given slug. With includeReviews it also loads
// one page of review previews, concurrently with the firm itself.
func (s *FirmService) Get(ctx context.Context, slug string, includeReviews bool, page, perPage int) (*FirmDetail, error) {
	detail := &FirmDetail{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		firm, err := s.getFirm(gctx, slug)
		if err != nil {
			return err
		}
		detail.Firm = firm
		return nil
	})
	if includeReviews {
		if perPage <= 0 {
			perPage = DefaultFirmReviewsPerPage
		}
		g.Go(func() error {
			reviews, total, err := s.store.Repos().Reviews.List(gctx, repository.ReviewFilter{
				FirmSlug: &slug,
				Sort:     domain.ReviewSortNewest,
				Page:     page,
				PerPage:  perPage,
			})
			if err != nil {
				return fmt.Errorf("list firm reviews: %w", err)
			}
			detail.Reviews = domain.Previews(reviews)
			detail.ReviewsTotal = total
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("firm", slug)
		}
		return nil, apperrors.Internal(fmt.Errorf("get firm: %w", err))
	}
	return detail, nil
}

// getFirm reads through the cache. Cache failures fall back to the store.
func (s *FirmService) getFirm(ctx context.Context, slug string) (*domain.Firm, error) {
	if s.cache != nil {
		firm, err := s.cache.Get(ctx, slug)
		switch {
		case err == nil:
			s.metrics.firmCache.WithLabelValues("hit").Inc()
			return firm, nil
		case errors.Is(err, repository.ErrCacheMiss):
			s.metrics.firmCache.WithLabelValues("miss").Inc()
		default:
			s.metrics.firmCache.WithLabelValues("error").Inc()
			s.logger.WarnContext(ctx, "firm cache read failed",
				slog.String("firm_slug", slug),
				slog.String("error", err.Error()),
			)
		}
	}

	firm, err := s.store.Repos().Firms.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	refreshCachedFirm(ctx, s.cache, firm, s.logger)
	return firm, nil
}

// List returns firms matching the filter.
func (s *FirmService) List(ctx context.Context, filter repository.FirmFilter) ([]domain.Firm, int, error) {
	firms, total, err := s.store.Repos().Firms.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(fmt.Errorf("list firms: %w", err))
	}
	return firms, total, nil
}

// Recompute rebuilds a firm's aggregate from its reviews. When the stored
// aggregate is consistent the result is identical to it.
func (s *FirmService) Recompute(ctx context.Context, slug string) (*domain.Firm, error) {
	var firm *domain.Firm
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		found, err := repos.Firms.GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		locked, err := repos.Firms.LockByID(ctx, found.ID)
		if err != nil {
			return err
		}
		if err := recomputeAggregate(ctx, repos, locked, s.now(), s.metrics); err != nil {
			return err
		}
		firm = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("firm", slug)
		}
		return nil, apperrors.Internal(fmt.Errorf("recompute firm aggregate: %w", err))
	}

	refreshCachedFirm(ctx, s.cache, firm, s.logger)
	if err := s.producer.PublishFirmRatingUpdated(ctx, firm); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish firm.rating_updated event",
			slog.String("firm_id", firm.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "firm aggregate recomputed",
		slog.String("firm_id", firm.ID),
		slog.String("firm_slug", firm.Slug),
		slog.Int("total_reviews", firm.TotalReviews),
		slog.Float64("avg_rating", firm.AvgRating()),
	)
	return firm, nil
}
