package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/RakeshKhadav/VC/internal/config"
	"github.com/RakeshKhadav/VC/internal/event"
	handler "github.com/RakeshKhadav/VC/internal/handler/http"
	"github.com/RakeshKhadav/VC/internal/identity"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/internal/repository/memory"
	"github.com/RakeshKhadav/VC/internal/repository/postgres"
	rediscache "github.com/RakeshKhadav/VC/internal/repository/redis"
	"github.com/RakeshKhadav/VC/internal/service"
	"github.com/RakeshKhadav/VC/migrations"
	"github.com/RakeshKhadav/VC/pkg/database"
	"github.com/RakeshKhadav/VC/pkg/health"
	"github.com/RakeshKhadav/VC/pkg/httpclient"
	pkgkafka "github.com/RakeshKhadav/VC/pkg/kafka"
	"github.com/RakeshKhadav/VC/pkg/middleware"
	"github.com/RakeshKhadav/VC/pkg/tracing"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const limiterSweepInterval = time.Minute

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	tracerShutdown tracing.ShutdownFunc
	httpServer     *http.Server

	// Services are exposed for the seeder.
	Reviews *service.ReviewService
	Users   *service.UserService
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdown, err := tracing.Init(ctx, cfg.Tracing(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	var cache repository.FirmCache
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		cache = rediscache.NewFirmCache(client, cfg.FirmCacheTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	producer := event.NewNopProducer(logger)
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		}, pkgkafka.NewProducerMetrics(reg), logger)
		producer = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	var profiles identity.ProfileProvider = identity.ClaimsProvider{}
	if cfg.IDPBaseURL != "" {
		httpCfg, cbCfg := cfg.IdentityClient()
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpCfg), cbCfg, httpclient.NewBreakerMetrics(reg), logger,
		)
		profiles = identity.NewHTTPProvider(cfg.IDPBaseURL, cfg.IDPAPIKey, client)
		logger.Info("identity profile lookups enabled", slog.String("base_url", cfg.IDPBaseURL))
	}
	verifier := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	// Build the dependency graph.
	metrics := service.NewMetrics(reg)
	policy := cfg.QuotaPolicy()
	a.Reviews = service.NewReviewService(store, cache, producer, metrics, logger)
	a.Users = service.NewUserService(store, profiles, policy, producer, metrics, logger)
	firms := service.NewFirmService(store, cache, producer, metrics, logger)
	gate := service.NewAccessGate(store, a.Users, policy, producer, metrics, logger)

	a.limiter = middleware.NewRateLimiter(cfg.SubmitRateLimitRPS, cfg.SubmitRateLimitBurst, 10*time.Minute, logger)

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:   cfg.ServiceName,
		Reviews:       a.Reviews,
		Firms:         firms,
		Users:         a.Users,
		Gate:          gate,
		Health:        healthHandler,
		Verify:        verifier.Verify,
		UpgradeURL:    cfg.UpgradeURL,
		Gatherer:      reg,
		HTTPMetrics:   middleware.NewHTTPMetrics(reg),
		SubmitLimiter: a.limiter,
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		PprofCIDRs:    cfg.PprofAllowedCIDRs,
		Logger:        logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ok = true
	return a, nil
}

// openStore connects the configured store and registers its health check.
func (a *App) openStore(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (repository.Store, error) {
	cfg := a.cfg
	if cfg.StoreDriver == config.StoreDriverMemory {
		a.logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		h.RegisterCritical("store", store.Ping)
		return store, nil
	}

	database.SetSlowQueryLogging(time.Duration(cfg.LogSlowQueryMS)*time.Millisecond, a.logger)
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	reg.MustRegister(database.NewPoolStatsCollector(pool, cfg.ServiceName))

	store := postgres.NewStore(pool)
	h.RegisterCritical("postgres", store.Ping)
	return store, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.sweepLimiter(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.logger.Debug("evicted idle rate limit buckets", slog.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.close()

	a.logger.Info("application shutdown complete")
	return nil
}

// Close releases connections without serving. Used by one-shot commands.
func (a *App) Close() {
	a.close()
}

func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
		a.tracerShutdown = nil
	}
}
