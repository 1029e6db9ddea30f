package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RakeshKhadav/VC/internal/service"
	"github.com/RakeshKhadav/VC/pkg/health"
	"github.com/RakeshKhadav/VC/pkg/middleware"
)

// RoleAdmin may trigger aggregate recomputes.
const RoleAdmin = "admin"

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	ServiceName string
	Reviews     *service.ReviewService
	Firms       *service.FirmService
	Users       *service.UserService
	Gate        *service.AccessGate
	Health      *health.Handler
	Verify      middleware.TokenValidator
	UpgradeURL  string

	// Optional.
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *middleware.HTTPMetrics
	SubmitLimiter *middleware.RateLimiter
	CORS          middleware.CORSConfig
	PprofCIDRs    []string
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all review platform routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	reviewHandler := NewReviewHandler(cfg.Reviews, cfg.Users, cfg.Gate, cfg.UpgradeURL, logger)
	firmHandler := NewFirmHandler(cfg.Firms, logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Reviews, logger)

	requireAuth := middleware.Auth(cfg.Verify)
	optionalAuth := middleware.OptionalAuth(cfg.Verify)
	scoped := middleware.RequestLogger(logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Group(func(r chi.Router) {
			r.Use(scoped)
			r.Use(middleware.CacheControl(30))
			r.Get("/reviews", reviewHandler.ListReviews)
			r.Get("/firms", firmHandler.ListFirms)
			r.Get("/firms/{slug}", firmHandler.GetFirm)
		})

		// Submission, attributed when a token is present
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth, scoped)
			if cfg.SubmitLimiter != nil {
				r.Use(cfg.SubmitLimiter.Middleware)
			}
			r.Post("/reviews", reviewHandler.SubmitReview)
		})

		// Authenticated, per-user responses
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, scoped, middleware.NoStore)

			r.Get("/reviews/{id}", reviewHandler.GetReview)
			r.Post("/views", reviewHandler.RecordView)

			r.Get("/users/me", userHandler.GetMe)
			r.Patch("/users/me", userHandler.UpdatePlan)
			r.Post("/users/me/sync", userHandler.Sync)
			r.Get("/users/me/quota", userHandler.GetQuota)
			r.Get("/users/me/reviews", userHandler.ListMyReviews)

			r.With(middleware.RequireRole(RoleAdmin)).Post("/firms/{slug}/recompute", firmHandler.RecomputeFirm)
		})
	})

	return r
}
