package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Gabi10k2/gabibrx/libs/config"
	"github.com/Gabi10k2/gabibrx/libs/db"
	"github.com/Gabi10k2/gabibrx/libs/httpx"
	"github.com/Gabi10k2/gabibrx/libs/kafkax"
	"github.com/Gabi10k2/gabibrx/libs/otelx"
	"github.com/Gabi10k2/gabibrx/libs/runtime"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/booking"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/handlers"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/intake"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/outbox"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/schedule"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/settings"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	cfg, err := settings.Load(config.String("BUSINESS_CONFIG", "config/business.yaml"))
	if err != nil {
		logger.Error("business config load failed", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: config.String("REDIS_ADDR", "localhost:6379")})
	defer func() { _ = rdb.Close() }()

	engine := schedule.NewEngine(schedule.WeekHours{
		WeekdayOpen:  cfg.WeekdayOpen,
		WeekdayClose: cfg.WeekdayClose,
		WeekendOpen:  cfg.WeekendOpen,
		WeekendClose: cfg.WeekendClose,
	}, cfg.SlotStep, cfg.Location)

	repo := storage.NewAppointmentRepository(pool)
	resolver := schedule.NewResolver(engine, repo, time.Now)
	outboxRepo := outbox.NewRepository(pool)
	svc := booking.NewService(cfg, engine, resolver, repo, outboxRepo, logger, time.Now)

	sessionTTL := time.Duration(config.Int("INTAKE_SESSION_TTL_MINUTES", 30)) * time.Minute
	sessions := intake.NewRedisSessions(rdb, sessionTTL)
	flow := intake.NewFlow(svc, sessions, cfg.Location)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(svc, logger, config.String("ADMIN_JWT_SECRET", ""))
	intakeHandler := handlers.NewIntakeHandler(flow, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
		runtime.ReadyCheck{Name: "redis", Check: intake.ReadyCheck(rdb)},
	)
	mux.HandleFunc("/api/v1/services", bookingHandler.Services)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.RouteBookings)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/admin/appointments", bookingHandler.AdminList)
	mux.HandleFunc("/api/v1/intake/message", intakeHandler.Message)
	mux.HandleFunc("/api/v1/intake/reset", intakeHandler.Reset)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if config.Bool("RATE_LIMIT_USE_REDIS", true) {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 64*1024))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		rateLimitMW,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
