package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/service"
	"github.com/RakeshKhadav/VC/pkg/httputil"
	"github.com/RakeshKhadav/VC/pkg/middleware"
	"github.com/RakeshKhadav/VC/pkg/pagination"
)

// UserHandler handles HTTP requests for the caller's own account.
type UserHandler struct {
	users   *service.UserService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, reviews *service.ReviewService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, reviews: reviews, logger: logger}
}

// UpdatePlanRequest is the JSON request body for changing plans.
type UpdatePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free premium"`
}

type userResponse struct {
	User  *domain.User       `json:"user"`
	Quota domain.QuotaStatus `json:"quota"`
}

// quotaResponse is the compact quota payload.
type quotaResponse struct {
	ViewsThisMonth  int              `json:"viewsThisMonth"`
	RemainingViews  domain.Remaining `json:"remainingViews"`
	HasReachedLimit bool             `json:"hasReachedLimit"`
	IsPremium       bool             `json:"isPremium"`
	MonthlyLimit    *int             `json:"monthlyLimit"`
	ResetsAt        time.Time        `json:"resetsAt"`
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Provision(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeUser(w, r, user)
}

// Sync handles POST /api/v1/users/me/sync
func (h *UserHandler) Sync(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Sync(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeUser(w, r, user)
}

// UpdatePlan handles PATCH /api/v1/users/me
func (h *UserHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.users.UpdatePlan(r.Context(), middleware.ClaimsFromContext(r.Context()), domain.Plan(req.Plan))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeUser(w, r, user)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, user *domain.User) {
	quota, err := h.users.QuotaStatus(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, userResponse{User: user, Quota: quota})
}

// GetQuota handles GET /api/v1/users/me/quota
func (h *UserHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Provision(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	st, err := h.users.QuotaStatus(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, quotaResponse{
		ViewsThisMonth:  st.ViewsThisMonth,
		RemainingViews:  st.RemainingViews,
		HasReachedLimit: st.HasReachedLimit,
		IsPremium:       st.IsPremium,
		MonthlyLimit:    st.MonthlyLimit,
		ResetsAt:        st.ResetsAt,
	})
}

// ListMyReviews handles GET /api/v1/users/me/reviews
func (h *UserHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Provision(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p := pagination.FromRequest(r, defaultReviewsPerPage)
	reviews, total, err := h.reviews.ListByAuthor(r.Context(), user.ID, p.Page, p.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, httputil.NewPage(reviews, total, p.Page, p.Limit))
}
