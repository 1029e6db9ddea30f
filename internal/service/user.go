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
	"github.com/RakeshKhadav/VC/internal/identity"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/middleware"
)

// UserService maintains local user records for identity-provider accounts.
type UserService struct {
	store    repository.Store
	profiles identity.ProfileProvider
	policy   domain.QuotaPolicy
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(store repository.Store, profiles identity.ProfileProvider, policy domain.QuotaPolicy, producer *event.Producer, metrics *Metrics, logger *slog.Logger) *UserService {
	return &UserService{
		store:    store,
		profiles: profiles,
		policy:   policy,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Provision returns the local user for the caller, creating it on first use.
// Known users are returned without contacting the identity provider.
func (s *UserService) Provision(ctx context.Context, claims *middleware.Claims) (*domain.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	user, err := s.store.Repos().Users.GetByExternalID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("get user: %w", err))
	}
	return s.upsert(ctx, claims)
}

// Sync fetches the caller's current profile and merges it into the local
// record, creating the record if needed. The plan is never changed.
func (s *UserService) Sync(ctx context.Context, claims *middleware.Claims) (*domain.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return s.upsert(ctx, claims)
}

func (s *UserService) upsert(ctx context.Context, claims *middleware.Claims) (*domain.User, error) {
	profile, err := s.profiles.Profile(ctx, claims)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Internal(fmt.Errorf("fetch profile: %w", err))
	}

	now := s.now()
	user, created, err := s.store.Repos().Users.Upsert(ctx, &domain.User{
		ID:         uuid.New().String(),
		ExternalID: claims.Subject,
		Email:      profile.Email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		ImageURL:   profile.ImageURL,
		Plan:       domain.PlanFree,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upsert user: %w", err))
	}

	if created {
		s.metrics.usersProvisioned.Inc()
		if err := s.producer.PublishUserProvisioned(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.provisioned event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "user provisioned",
			slog.String("user_id", user.ID),
			slog.String("external_id", user.ExternalID),
		)
	}
	return user, nil
}

// UpdatePlan switches the caller to plan. Past views are kept; a downgrade
// takes effect against the views already recorded this month.
func (s *UserService) UpdatePlan(ctx context.Context, claims *middleware.Claims, plan domain.Plan) (*domain.User, error) {
	if !plan.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("plan must be one of %q or %q", domain.PlanFree, domain.PlanPremium))
	}

	user, err := s.Provision(ctx, claims)
	if err != nil {
		return nil, err
	}
	if user.Plan == plan {
		return user, nil
	}

	previous := user.Plan
	updated, err := s.store.Repos().Users.UpdatePlan(ctx, user.ID, plan, s.now())
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("update plan: %w", err))
	}

	if err := s.producer.PublishUserPlanChanged(ctx, updated, previous); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.plan_changed event",
			slog.String("user_id", updated.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "user plan changed",
		slog.String("user_id", updated.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(updated.Plan)),
	)
	return updated, nil
}

// QuotaStatus returns the user's position in the current monthly window.
func (s *UserService) QuotaStatus(ctx context.Context, user *domain.User) (domain.QuotaStatus, error) {
	now := s.now()
	used, err := s.store.Repos().Quotas.Used(ctx, user.ID, domain.PeriodStart(now))
	if err != nil {
		return domain.QuotaStatus{}, apperrors.Internal(fmt.Errorf("read quota: %w", err))
	}
	return s.policy.Status(user.Plan, used, now), nil
}
