package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/event"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/middleware"
)

// ViewResult is the outcome of a gated read. Review is set only when the
// read was admitted.
type ViewResult struct {
	Decision domain.Decision
	User     *domain.User
	Review   *domain.Review
	Quota    domain.QuotaStatus
}

// Admitted reports whether the read was admitted.
func (r *ViewResult) Admitted() bool { return r.Decision == domain.Admitted }

const quotaExceededMessage = "You have reached your monthly limit of free review views. Upgrade to premium for unlimited access."

// Denial returns the QUOTA_EXCEEDED error for a denied read, nil otherwise.
func (r *ViewResult) Denial() *apperrors.AppError {
	if r.Admitted() {
		return nil
	}
	return apperrors.QuotaExceeded(quotaExceededMessage)
}

// AccessGate admits or denies full review reads against the monthly quota.
type AccessGate struct {
	store    repository.Store
	users    *UserService
	policy   domain.QuotaPolicy
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccessGate creates a new access gate.
func NewAccessGate(store repository.Store, users *UserService, policy domain.QuotaPolicy, producer *event.Producer, metrics *Metrics, logger *slog.Logger) *AccessGate {
	return &AccessGate{
		store:    store,
		users:    users,
		policy:   policy,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CheckAndRecordView provisions the caller if needed, then either records a
// view of the review and admits the read or denies it. Counting and recording
// happen atomically, so concurrent reads by one free user never exceed the
// monthly limit. A denial is a result, not an error.
func (g *AccessGate) CheckAndRecordView(ctx context.Context, claims *middleware.Claims, reviewID string) (*ViewResult, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if _, err := uuid.Parse(reviewID); err != nil {
		return nil, apperrors.InvalidInput("reviewId must be a valid UUID")
	}

	review, err := g.store.Repos().Reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, apperrors.Internal(fmt.Errorf("get review: %w", err))
	}

	user, err := g.users.Provision(ctx, claims)
	if err != nil {
		return nil, err
	}

	now := g.now()
	period := domain.PeriodStart(now)
	limit, limited := g.policy.Limit(user.Plan)
	if !limited {
		limit = 0
	}

	var (
		used     int
		admitted bool
	)
	err = g.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		used, admitted, err = repos.Quotas.TryConsume(ctx, user.ID, period, limit)
		if err != nil {
			return fmt.Errorf("consume view: %w", err)
		}
		if !admitted {
			return nil
		}
		return repos.Quotas.AppendView(ctx, &domain.ReviewView{
			ID:       uuid.New().String(),
			UserID:   user.ID,
			ReviewID: review.ID,
			ViewedAt: now,
		})
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("record view: %w", err))
	}

	result := &ViewResult{
		Decision: domain.Denied,
		User:     user,
		Quota:    g.policy.Status(user.Plan, used, now),
	}
	if admitted {
		result.Decision = domain.Admitted
		result.Review = review
	}
	g.metrics.quotaDecisions.WithLabelValues(string(user.Plan), result.Decision.String()).Inc()

	if admitted {
		if err := g.producer.PublishReviewViewed(ctx, user, review.ID, result.Quota, now); err != nil {
			g.logger.ErrorContext(ctx, "failed to publish review.viewed event",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
		g.logger.InfoContext(ctx, "review view admitted",
			slog.String("user_id", user.ID),
			slog.String("review_id", review.ID),
			slog.Int("views_this_month", used),
		)
		return result, nil
	}

	if err := g.producer.PublishReviewViewDenied(ctx, user, review.ID, result.Quota, now); err != nil {
		g.logger.ErrorContext(ctx, "failed to publish review.view_denied event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	g.logger.WarnContext(ctx, "review view denied",
		slog.String("user_id", user.ID),
		slog.String("review_id", review.ID),
		slog.Int("views_this_month", used),
	)
	return result, nil
}
