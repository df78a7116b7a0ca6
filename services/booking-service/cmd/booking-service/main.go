package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/salonbook/platform/libs/config"
	"github.com/salonbook/platform/libs/db"
	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/libs/kafkax"
	otelx "github.com/salonbook/platform/libs/otel"
	"github.com/salonbook/platform/libs/runtime"
	"github.com/salonbook/platform/services/booking-service/internal/booking"
	"github.com/salonbook/platform/services/booking-service/internal/calendar"
	"github.com/salonbook/platform/services/booking-service/internal/handlers"
	"github.com/salonbook/platform/services/booking-service/internal/notify"
	"github.com/salonbook/platform/services/booking-service/internal/outbox"
	"github.com/salonbook/platform/services/booking-service/internal/roster"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
	"github.com/salonbook/platform/services/booking-service/internal/storage/memstore"
	"github.com/salonbook/platform/services/booking-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// appStore is everything the HTTP surface needs from persistence. Both the
// Postgres repository and the in-memory store satisfy it.
type appStore interface {
	booking.Store
	calendar.Store
	roster.Store
	handlers.TenantLookup
}

var (
	_ appStore = (*storage.Repository)(nil)
	_ appStore = (*memstore.Store)(nil)
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := runtime.ShutdownContext(5 * time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	jwtSecret, err := config.RequiredString("ADMIN_JWT_SECRET")
	if err != nil {
		panic(err)
	}

	store, checks, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer closeStore()

	var notifier notify.Notifier = notify.Nop{}
	if host := config.String("SMTP_HOST", ""); host != "" {
		sender := notify.NewSMTPSender(host, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", ""))
		notifier = notify.NewEmailNotifier(sender, config.String("PUBLIC_BASE_URL", "http://localhost:"+port))
		logger.Info("email notifications enabled", "smtp_host", host)
	}

	limit, limitCheck, closeLimit := rateLimit(logger)
	defer closeLimit()
	if limitCheck != nil {
		checks = append(checks, *limitCheck)
	}

	bookings := booking.NewService(store, logger, booking.WithNotifier(notifier))
	ttl := time.Duration(config.Int("ADMIN_TOKEN_TTL_MINUTES", 720)) * time.Minute

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux,
		handlers.NewPublicHandler(bookings, logger),
		handlers.NewLoginHandler(store, jwtSecret, ttl, logger),
		handlers.NewAdminHandler(bookings, calendar.NewProjector(store), roster.NewService(store), logger),
		handlers.NewJWTAuthorizer(jwtSecret),
		limit,
	)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("HTTP_HANDLER_TIMEOUT_SECONDS", 15))*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := runtime.ShutdownContext(10 * time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// openStore selects the persistence driver from STORE_DRIVER ("postgres" or "memory").
func openStore(ctx context.Context, logger *slog.Logger) (appStore, []runtime.ReadyCheck, func(), error) {
	driver := strings.ToLower(config.String("STORE_DRIVER", "postgres"))
	switch driver {
	case "memory":
		store := memstore.New()
		if config.Bool("SEED_DEMO", true) {
			if err := seedDemo(ctx, store, config.String("DEMO_ADMIN_KEY", "demo-admin-key")); err != nil {
				return nil, nil, nil, fmt.Errorf("seed demo tenant: %w", err)
			}
			logger.Info("demo tenant seeded", "tenant", demoSlug)
		}
		logger.Warn("using in-memory store; data is lost on restart")
		return store, nil, func() {}, nil
	case "postgres":
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db connection failed: %w", err)
	}
	if config.Bool("AUTO_MIGRATE", true) {
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: time.Duration(config.Int("OUTBOX_POLL_MS", 2000)) * time.Millisecond,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		Retention: time.Duration(config.Int("OUTBOX_RETENTION_HOURS", 168)) * time.Hour,
	})
	go publisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	return storage.NewRepository(pool, outboxRepo), checks, pool.Close, nil
}

// rateLimit returns the limiter for unauthenticated routes and a func releasing its
// resources. Redis makes the window shared across instances; without it each process
// counts on its own.
func rateLimit(logger *slog.Logger) (httpx.Middleware, *runtime.ReadyCheck, func()) {
	noop := func() {}
	perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if perMinute <= 0 {
		return nil, nil, noop
	}
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(perMinute, time.Minute).Middleware(), nil, noop
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	limiter := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "booking")
	check := &runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
	closeRedis := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close failed", "err", err)
		}
	}
	return limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), check, closeRedis
}
