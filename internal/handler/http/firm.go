package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/internal/service"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
	"github.com/RakeshKhadav/VC/pkg/httputil"
	"github.com/RakeshKhadav/VC/pkg/pagination"
)

const defaultFirmsPerPage = 20

// FirmHandler handles HTTP requests for firm endpoints.
type FirmHandler struct {
	firms  *service.FirmService
	logger *slog.Logger
}

// NewFirmHandler creates a new firm HTTP handler.
func NewFirmHandler(firms *service.FirmService, logger *slog.Logger) *FirmHandler {
	return &FirmHandler{firms: firms, logger: logger}
}

type firmDetailResponse struct {
	Firm    *domain.Firm                         `json:"firm"`
	Reviews *httputil.Page[domain.ReviewPreview] `json:"reviews,omitempty"`
}

// ListFirms handles GET /api/v1/firms
func (h *FirmHandler) ListFirms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := pagination.FromRequest(r, defaultFirmsPerPage)

	sort, ok := domain.ParseFirmSort(q.Get("sort"))
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("sort must be one of: rating name reviews recent"), h.logger)
		return
	}

	filter := repository.FirmFilter{Sort: sort, Page: p.Page, PerPage: p.Limit}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		filter.Search = &v
	}

	firms, total, err := h.firms.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, httputil.NewPage(firms, total, p.Page, p.Limit))
}

// GetFirm handles GET /api/v1/firms/{slug}
func (h *FirmHandler) GetFirm(w http.ResponseWriter, r *http.Request) {
	includeReviews := r.URL.Query().Get("includeReviews") == "true"
	p := pagination.FromRequest(r, service.DefaultFirmReviewsPerPage)

	detail, err := h.firms.Get(r.Context(), chi.URLParam(r, "slug"), includeReviews, p.Page, p.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := firmDetailResponse{Firm: detail.Firm}
	if includeReviews {
		page := httputil.NewPage(detail.Reviews, detail.ReviewsTotal, p.Page, p.Limit)
		resp.Reviews = &page
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// RecomputeFirm handles POST /api/v1/firms/{slug}/recompute
func (h *FirmHandler) RecomputeFirm(w http.ResponseWriter, r *http.Request) {
	firm, err := h.firms.Recompute(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]any{"firm": firm})
}
