package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/mysellum/marketplace-api/internal/cache"
	"github.com/mysellum/marketplace-api/internal/checkout"
	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/config"
	"github.com/mysellum/marketplace-api/internal/events"
	"github.com/mysellum/marketplace-api/internal/health"
	"github.com/mysellum/marketplace-api/internal/obs"
	"github.com/mysellum/marketplace-api/internal/payment"
	"github.com/mysellum/marketplace-api/internal/pricing"
	"github.com/mysellum/marketplace-api/internal/product"
	"github.com/mysellum/marketplace-api/internal/queue"
	"github.com/mysellum/marketplace-api/internal/repo"
	"github.com/mysellum/marketplace-api/internal/reviews"
	"github.com/mysellum/marketplace-api/internal/security"
	"github.com/mysellum/marketplace-api/internal/shipping"
	"github.com/mysellum/marketplace-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "sellum")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "marketplace-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "marketplace-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(redisConn)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	storesRepo := repo.Stores{DB: pool}
	productsRepo := repo.Products{DB: pool}
	reviewsRepo := repo.Reviews{DB: pool}
	usersRepo := repo.Users{DB: pool}

	processor := buildProcessor(cfg, logger)

	bus := &events.Bus{Notifiers: []events.Notifier{
		queue.NewScheduler(taskClient, events.ActivationTopics(), logger),
	}}

	validate := validator.New()

	storeCache := cache.New(redisClient, cfg.CacheTTL)

	storeSvc := &store.Service{Repo: storesRepo, Merchants: processor, Cache: storeCache, Events: bus, Logger: logger}
	storeHandler := &store.Handler{Svc: storeSvc, Validate: validate}

	productSvc := &product.Service{Repo: productsRepo, Stores: storesRepo, Events: bus, Logger: logger}
	productHandler := &product.Handler{Svc: productSvc, Validate: validate}

	reviewSvc := &reviews.Service{Repo: reviewsRepo, Users: usersRepo}
	reviewHandler := &reviews.Handler{Svc: reviewSvc, Validate: validate}

	checkoutSvc := &checkout.Service{
		Stores:   storesRepo,
		Products: productsRepo,
		Shipping: shipping.FlatRate{Amount: cfg.ShippingFlatCost},
		Calc: pricing.Calculator{
			TaxRate:        cfg.TaxRate,
			DefaultFeeRate: cfg.PlatformFeeRateDefault,
		},
		Processor:          processor,
		BrandName:          cfg.BrandName,
		CurrencyCode:       cfg.CurrencyCode,
		CountryCode:        cfg.CountryCode,
		PlatformMerchantID: cfg.PayPalPlatformMerchantID,
		PlatformEmail:      cfg.PayPalPlatformEmail,
		Events:             bus,
		Logger:             logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS", true),
		EnableHSTS:            envBool("SECURE_HSTS", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_SUBDOMAINS", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", common.ActorHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(common.ActorMiddleware)
	r.Use(ensureUser(usersRepo, logger))

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse rate limit")
	}
	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	r.Use(limiterstdlib.NewMiddleware(limiter.New(limiterStore, rate)).Handler)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/stores", func(s chi.Router) {
			s.Get("/", storeHandler.List)
			s.With(common.RequireActor).Post("/", storeHandler.Create)
			s.Route("/{storeID}", func(one chi.Router) {
				one.Get("/", storeHandler.Get)
				one.Group(func(owner chi.Router) {
					owner.Use(common.RequireActor)
					owner.Patch("/", storeHandler.Edit)
					owner.Delete("/", storeHandler.Delete)
					owner.Post("/payment/merchant-id", storeHandler.RegisterMerchant)
					owner.Post("/payment/signup-link", storeHandler.SignUpLink)
				})

				one.Get("/products", productHandler.ListByStore)
				one.With(common.RequireActor).Post("/products", productHandler.Create)

				one.Get("/reviews", reviewHandler.List)
				one.Group(func(rv chi.Router) {
					rv.Use(common.RequireActor)
					rv.Post("/reviews", reviewHandler.Create)
					rv.Patch("/reviews/{reviewID}", reviewHandler.Edit)
					rv.Delete("/reviews/{reviewID}", reviewHandler.Delete)
				})
			})
		})

		v.Route("/products/{productID}", func(p chi.Router) {
			p.Get("/", productHandler.Get)
			p.Group(func(owner chi.Router) {
				owner.Use(common.RequireActor)
				owner.Patch("/", productHandler.Edit)
				owner.Patch("/stock", productHandler.UpdateStock)
				owner.Delete("/", productHandler.Delete)
			})
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Use(common.RequireActor)
			c.With(idem.Middleware).Post("/order", checkoutHandler.CreateOrder)
			c.Post("/capture", checkoutHandler.CaptureOrder)
			c.Post("/refund", checkoutHandler.RefundCapture)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildProcessor(cfg *config.Config, logger zerolog.Logger) payment.Processor {
	if cfg.PaymentProcessor == "mock" {
		logger.Warn().Msg("using mock payment processor")
		return payment.NewMock()
	}
	return payment.NewPayPal(payment.PayPalConfig{
		BaseURL:            cfg.PayPalBaseURL,
		ClientID:           cfg.PayPalClientID,
		ClientSecret:       cfg.PayPalClientSecret,
		PlatformMerchantID: cfg.PayPalPlatformMerchantID,
		Logger:             logger,
	})
}

// ensureUser provisions a user row the first time a gateway identity is seen.
// The gateway forwards display names alongside the email header.
func ensureUser(users repo.Users, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email, ok := common.ActorEmail(r.Context()); ok {
				first := strings.TrimSpace(r.Header.Get("X-User-First-Name"))
				last := strings.TrimSpace(r.Header.Get("X-User-Last-Name"))
				if err := users.Ensure(r.Context(), email, first, last); err != nil {
					logger.Error().Err(err).Str("actor", email).Msg("ensure user")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
