package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/internal/service"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/httputil"
	"github.com/RakeshKhadav/VC/pkg/middleware"
	"github.com/RakeshKhadav/VC/pkg/pagination"
)

const defaultReviewsPerPage = 20

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	reviews    *service.ReviewService
	users      *service.UserService
	gate       *service.AccessGate
	upgradeURL string
	logger     *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(reviews *service.ReviewService, users *service.UserService, gate *service.AccessGate, upgradeURL string, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews:    reviews,
		users:      users,
		gate:       gate,
		upgradeURL: upgradeURL,
		logger:     logger,
	}
}

// --- Request DTOs ---

type ratingsRequest struct {
	Responsiveness *float64 `json:"responsiveness" validate:"required,gte=1,lte=5"`
	Fairness       *float64 `json:"fairness" validate:"required,gte=1,lte=5"`
	Support        *float64 `json:"support" validate:"required,gte=1,lte=5"`
}

// SubmitReviewRequest is the JSON request body for submitting a review.
type SubmitReviewRequest struct {
	FirmName          string          `json:"firmName" validate:"required,max=200"`
	FirmWebsite       string          `json:"firmWebsite" validate:"omitempty,max=500"`
	Ratings           *ratingsRequest `json:"ratings" validate:"required"`
	ReviewText        string          `json:"reviewText" validate:"required,max=10000"`
	CompanyName       string          `json:"companyName" validate:"max=200"`
	CompanyWebsite    string          `json:"companyWebsite" validate:"max=500"`
	Industry          string          `json:"industry" validate:"max=100"`
	Role              string          `json:"role" validate:"max=100"`
	CompanyLocation   string          `json:"companyLocation" validate:"max=200"`
	FundingStage      string          `json:"fundingStage" validate:"max=100"`
	InvestmentAmount  string          `json:"investmentAmount" validate:"max=100"`
	YearOfInteraction *int            `json:"yearOfInteraction" validate:"omitempty,gte=1900,lte=2100"`
	IsAnonymous       *bool           `json:"isAnonymous"`
}

// RecordViewRequest is the JSON request body for an explicit gated read.
type RecordViewRequest struct {
	ReviewID string `json:"reviewId" validate:"required,uuid"`
}

// --- Response DTOs ---

type submitReviewResponse struct {
	ReviewID string       `json:"reviewId"`
	Firm     *domain.Firm `json:"firm"`
}

type gatedReviewResponse struct {
	Review *domain.Review     `json:"review"`
	Quota  domain.QuotaStatus `json:"quota"`
}

// quotaExceededResponse is the denial body. It is not wrapped in the error
// envelope so clients can read upgradeUrl at the top level.
type quotaExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	UpgradeURL string `json:"upgradeUrl"`
}

// --- Handlers ---

// SubmitReview handles POST /api/v1/reviews
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	input := &service.SubmitReviewInput{
		FirmName:    req.FirmName,
		FirmWebsite: req.FirmWebsite,
		Ratings: domain.Ratings{
			Responsiveness: *req.Ratings.Responsiveness,
			Fairness:       *req.Ratings.Fairness,
			Support:        *req.Ratings.Support,
		},
		ReviewText:        req.ReviewText,
		CompanyName:       req.CompanyName,
		CompanyWebsite:    req.CompanyWebsite,
		Industry:          req.Industry,
		Role:              req.Role,
		CompanyLocation:   req.CompanyLocation,
		FundingStage:      req.FundingStage,
		InvestmentAmount:  req.InvestmentAmount,
		YearOfInteraction: req.YearOfInteraction,
		IsAnonymous:       req.IsAnonymous,
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		user, err := h.users.Provision(r.Context(), claims)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		input.AuthorID = &user.ID
	}

	review, firm, err := h.reviews.Submit(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, submitReviewResponse{ReviewID: review.ID, Firm: firm})
}

// ListReviews handles GET /api/v1/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := pagination.FromRequest(r, defaultReviewsPerPage)

	sort, ok := domain.ParseReviewSort(q.Get("sort"))
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("sort must be one of: newest highest"), h.logger)
		return
	}

	filter := repository.ReviewFilter{Sort: sort, Page: p.Page, PerPage: p.Limit}
	if v := strings.TrimSpace(q.Get("firm")); v != "" {
		filter.FirmSlug = &v
	}
	if v := strings.TrimSpace(q.Get("industry")); v != "" {
		filter.Industry = &v
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("year must be an integer"), h.logger)
			return
		}
		filter.Year = &year
	}

	previews, total, err := h.reviews.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, httputil.NewPage(previews, total, p.Page, p.Limit))
}

// GetReview handles GET /api/v1/reviews/{id}. Each successful call spends
// one view from the caller's monthly quota.
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	h.gatedRead(w, r, chi.URLParam(r, "id"))
}

// RecordView handles POST /api/v1/views
func (h *ReviewHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	var req RecordViewRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.gatedRead(w, r, req.ReviewID)
}

func (h *ReviewHandler) gatedRead(w http.ResponseWriter, r *http.Request, reviewID string) {
	result, err := h.gate.CheckAndRecordView(r.Context(), middleware.ClaimsFromContext(r.Context()), reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if denial := result.Denial(); denial != nil {
		httputil.WriteJSON(w, denial.Status, quotaExceededResponse{
			Error:      denial.Code,
			Message:    denial.Message,
			UpgradeURL: h.upgradeURL,
		})
		return
	}

	httputil.WriteData(w, http.StatusOK, gatedReviewResponse{Review: result.Review, Quota: result.Quota})
}
