package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/staffslots/libs/auth"
	"github.com/md-rashed-zaman/staffslots/libs/config"
	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/libs/grpcx"
	"github.com/md-rashed-zaman/staffslots/libs/httpx"
	"github.com/md-rashed-zaman/staffslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/staffslots/libs/otel"
	"github.com/md-rashed-zaman/staffslots/libs/runtime"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)

	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		panic(err)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		panic(err)
	}
	brokers := config.String("KAFKA_BROKERS", "")

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	bookingMetrics := metrics.NewBookingMetrics(prometheus.NewRegistry())
	outboxRepo := outbox.NewRepository()
	store := storage.New(pool, outboxRepo)
	svc := scheduling.New(store, scheduling.Options{
		Logger:  logger,
		Metrics: bookingMetrics,
	})

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
		BatchSize: 50,
		OnPublish: bookingMetrics.ObserveEventPublished,
	})
	go publisher.Run(ctx)

	if topic := strings.TrimSpace(config.String("KAFKA_SETTINGS_TOPIC", consumer.TopicSettingsUpdated)); topic != "" {
		settingsConsumer := consumer.New(logger, pool, inbox.NewRepository(), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		}, consumer.NewSettingsHandler(logger))
		go settingsConsumer.Run(ctx)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var limiter httpx.Limiter
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, ratePerMinute, time.Minute, "booking:public")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set; rate limiting is per instance")
		limiter = httpx.NewMemoryLimiter(ratePerMinute, time.Minute)
	}

	var keys auth.KeySource
	if url := config.String("JWKS_URL", ""); url != "" {
		keys = auth.NewJWKSClient(url, 10*time.Minute)
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", ""), keys)
	if !verifier.Enabled() {
		logger.Warn("no JWT_SECRET or JWKS_URL configured; only public routes are reachable")
	}

	api := handlers.New(svc, logger).Routes(handlers.Options{
		Verifier: verifier,
		Public: []func(http.Handler) http.Handler{
			httpx.RateLimit(limiter, httpx.RateLimitOptions{
				Logger:   logger,
				FailOpen: true,
				Key:      httpx.HeaderScopedKey(auth.TenantHeader),
			}),
		},
	})

	r := chi.NewRouter()
	r.Use(
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, "/healthz", "/readyz", "/metrics"),
		httpx.WithCORS(httpx.APICORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithBodyLimit(1<<20),
	)
	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(checks...))
	r.Handle("/metrics", bookingMetrics.Handler())
	r.Mount("/api/v1", httpx.Chain(api, httpx.WithTimeout(requestTimeout)))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(r, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	go grpcx.WatchReadiness(ctx, health, "booking", 5*time.Second, checks...)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		if err := grpcx.Serve(ctx, grpcSrv, lis, logger, 10*time.Second); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	if err := runtime.ServeHTTP(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
}
