package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/tablekeeper/libs/db"
	"github.com/md-rashed-zaman/tablekeeper/libs/grpcx"
	"github.com/md-rashed-zaman/tablekeeper/libs/httpx"
	"github.com/md-rashed-zaman/tablekeeper/libs/kafkax"
	otelx "github.com/md-rashed-zaman/tablekeeper/libs/otel"
	"github.com/md-rashed-zaman/tablekeeper/libs/runtime"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/grpcserver"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/storage"
)

func main() {
	cfg, err := loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		logger.Error("otel config invalid", "err", err)
		os.Exit(2)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := storage.Migrate(ctx, pool); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	businessID := cfg.Engine.BusinessID
	outboxRepo := outbox.NewRepository(pool)
	calendarRepo := storage.NewCalendarRepository(pool, businessID)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo, businessID)

	svc, err := availability.NewService(cfg.Engine, calendarRepo, bookingRepo, availability.WithLogger(logger))
	if err != nil {
		logger.Error("availability service config invalid", "err", err)
		os.Exit(2)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	var (
		slotCache   *cache.SlotCache
		invalidator booking.Invalidator
		limiter     httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		slotCache = cache.NewSlotCache(rdb, businessID, cfg.SlotCacheTTL)
		invalidator = slotCache
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:availability")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: slotCache.Ping, Optional: true})
	} else {
		logger.Warn("REDIS_ADDR not set; slot cache disabled, rate limits are per instance")
	}

	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{Brokers: brokers})
		go publisher.Run(ctx)

		if slotCache != nil {
			c := consumer.New(logger, storage.NewInboxRepository(pool), consumer.Config{
				Brokers: brokers,
				GroupID: cfg.KafkaGroupID,
				Topics:  consumer.Topics,
			}, consumer.InvalidationHandler(slotCache, cfg.Engine.Zone, businessID, logger))
			go c.Run(ctx)
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	lister := cache.NewLister(svc, slotCache, logger)
	committer := booking.NewCommitter(svc, bookingRepo, cfg.Engine.Zone, cfg.BookingMaxAttempts, invalidator, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewAvailabilityHandler(svc, lister, committer, cfg.Engine.Zone, logger).Register(mux)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
	}
	if cfg.RateLimitPerMinute > 0 {
		middleware = append(middleware, httpx.RateLimit(limiter, logger, true))
	}
	middleware = append(middleware, httpx.WithBodyLimit(64<<10))

	handler := httpx.Chain(mux, middleware...)
	handler = otelhttp.NewHandler(handler, "availability")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, cfg.GRPCPort, svc, lister); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, checker grpcserver.Checker, lister grpcserver.Lister) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	grpcserver.Register(srv, checker, lister, logger)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	return nil
}
