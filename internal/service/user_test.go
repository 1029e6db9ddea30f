package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/event"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

func TestProvision_CreatesOnceWithFreePlan(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Profile", mock.Anything, mock.Anything).
		Return(domain.Profile{Email: "ada@founders.test", FirstName: "Ada"}, nil).Once()

	user, err := h.users.Provision(context.Background(), claimsFor("user_ada"))
	require.NoError(t, err)
	assert.Equal(t, "user_ada", user.ExternalID)
	assert.Equal(t, domain.PlanFree, user.Plan)
	assert.Equal(t, "Ada", user.FirstName)

	again, err := h.users.Provision(context.Background(), claimsFor("user_ada"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	h.profiles.AssertNumberOfCalls(t, "Profile", 1)
	assert.Equal(t, 1, h.pub.count(event.TopicUserProvisioned))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.usersProvisioned))
}

func TestProvision_ConcurrentFirstUse(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Profile", mock.Anything, mock.Anything).Return(domain.Profile{Email: "x@founders.test"}, nil)

	ids := make([]string, 10)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			u, err := h.users.Provision(context.Background(), claimsFor("user_x"))
			if err != nil {
				return err
			}
			ids[i] = u.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, h.pub.count(event.TopicUserProvisioned))
}

func TestProvision_Unauthenticated(t *testing.T) {
	h := newHarness(t)

	_, err := h.users.Provision(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestProvision_ProviderUnavailable(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Profile", mock.Anything, mock.Anything).
		Return(domain.Profile{}, apperrors.ServiceUnavailable("identity provider unavailable"))

	_, err := h.users.Provision(context.Background(), claimsFor("user_1"))
	require.Error(t, err)
	assert.Equal(t, 503, apperrors.HTTPStatus(err))

	_, err = h.store.Repos().Users.GetByExternalID(context.Background(), "user_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvision_ProviderFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Profile", mock.Anything, mock.Anything).Return(domain.Profile{}, errors.New("decode profile: EOF"))

	_, err := h.users.Provision(context.Background(), claimsFor("user_1"))
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

func TestSync_MergesProfileAndKeepsPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.profiles.On("Profile", mock.Anything, mock.Anything).
		Return(domain.Profile{Email: "old@founders.test", FirstName: "Grace", ImageURL: "https://img.test/1.png"}, nil).Once()
	h.profiles.On("Profile", mock.Anything, mock.Anything).
		Return(domain.Profile{Email: "new@founders.test", LastName: "Hopper"}, nil).Once()

	_, err := h.users.Sync(ctx, claimsFor("user_grace"))
	require.NoError(t, err)
	_, err = h.users.UpdatePlan(ctx, claimsFor("user_grace"), domain.PlanPremium)
	require.NoError(t, err)

	user, err := h.users.Sync(ctx, claimsFor("user_grace"))
	require.NoError(t, err)
	assert.Equal(t, "new@founders.test", user.Email)
	assert.Equal(t, "Grace", user.FirstName)
	assert.Equal(t, "Hopper", user.LastName)
	assert.Equal(t, "https://img.test/1.png", user.ImageURL)
	assert.Equal(t, domain.PlanPremium, user.Plan)
	assert.Equal(t, 1, h.pub.count(event.TopicUserProvisioned))
}

func TestUpdatePlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.profiles.On("Profile", mock.Anything, mock.Anything).Return(domain.Profile{}, nil)

	user, err := h.users.UpdatePlan(ctx, claimsFor("user_1"), domain.PlanPremium)
	require.NoError(t, err)
	assert.True(t, user.IsPremium())
	assert.Equal(t, 1, h.pub.count(event.TopicUserPlanChanged))

	user, err = h.users.UpdatePlan(ctx, claimsFor("user_1"), domain.PlanPremium)
	require.NoError(t, err)
	assert.True(t, user.IsPremium())
	assert.Equal(t, 1, h.pub.count(event.TopicUserPlanChanged), "no event without a change")

	_, err = h.users.UpdatePlan(ctx, claimsFor("user_1"), domain.Plan("enterprise"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestQuotaStatus_FreshUser(t *testing.T) {
	h := newHarness(t)
	h.profiles.On("Profile", mock.Anything, mock.Anything).Return(domain.Profile{}, nil)

	user, err := h.users.Provision(context.Background(), claimsFor("user_1"))
	require.NoError(t, err)

	status, err := h.users.QuotaStatus(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 0, status.ViewsThisMonth)
	assert.Equal(t, domain.Remaining{Count: 6}, status.RemainingViews)
	assert.False(t, status.HasReachedLimit)
	assert.False(t, status.IsPremium)
}
