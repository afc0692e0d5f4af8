package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/spin-reward-engine/internal/cache"
	"github.com/fairyhunter13/spin-reward-engine/internal/config"
	"github.com/fairyhunter13/spin-reward-engine/internal/handler"
	"github.com/fairyhunter13/spin-reward-engine/internal/notify"
	"github.com/fairyhunter13/spin-reward-engine/internal/repository"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/internal/validator"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
	"github.com/fairyhunter13/spin-reward-engine/pkg/tracing"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise tracing")
	}

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// The config cache is optional; the services and health check get an
	// untyped nil when it is off.
	var (
		configCache service.ConfigCache
		cachePinger handler.Pinger
		closeRedis  = func() error { return nil }
	)
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, serving reward config from the database")
		} else {
			configCache = cache.NewConfigCache(rdb, cfg.Redis.TTL)
			cachePinger = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
			closeRedis = rdb.Close
		}
	}

	var (
		notifier    service.Notifier
		closeWriter = func() error { return nil }
	)
	if cfg.Kafka.Enabled() {
		kn := notify.NewKafkaNotifier(notify.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic))
		notifier = kn
		closeWriter = kn.Close
	}

	loc, err := cfg.Reward.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid reward timezone")
	}

	// Repositories
	configRepo := repository.NewConfigRepository(pool)
	spinRepo := repository.NewSpinRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	pointsRepo := repository.NewPointsRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	referralRepo := repository.NewReferralRepository(pool)

	// Services
	configService := service.NewConfigService(pool, configRepo, configCache)
	spinService := service.NewSpinService(pool, service.SpinDeps{
		Configs: configService,
		Spins:   spinRepo,
		Coupons: couponRepo,
		Points:  pointsRepo,
		Orders:  orderRepo,
	}, service.SpinOptions{
		Location:     loc,
		CouponPrefix: cfg.Reward.CouponPrefix,
		Timeout:      cfg.Reward.SpinTimeout,
	})
	redemptionService := service.NewRedemptionService(couponRepo, cartRepo)
	reconciler := service.NewUsageReconciler(pool, couponRepo, orderRepo, referralRepo, notifier)
	adminService := service.NewAdminService(spinRepo, couponRepo)

	validate := validator.New()

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Spin Reward Engine",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())
	app.Use(handler.Tracing())
	app.Use(handler.Metrics())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handler.Register(app, handler.Routes{
		Health:   handler.NewHealthHandler(pool, cachePinger),
		Reward:   handler.NewRewardHandler(spinService),
		Cart:     handler.NewCartHandler(redemptionService, validate),
		Admin:    handler.NewAdminHandler(configService, adminService, validate),
		Orders:   handler.NewOrderHandler(reconciler, validate),
		Auth:     handler.RequireSubject([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer),
		Internal: handler.RequireInternalKey(cfg.Auth.InternalKey),
	})
	if cfg.Auth.InternalKey == "" {
		log.Warn().Msg("AUTH_INTERNAL_KEY is empty, internal endpoints are unauthenticated")
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Downstream clients are closed after the server so in-flight requests can finish.
	if err := closeWriter(); err != nil {
		log.Error().Err(err).Msg("error closing notification writer")
	}
	if err := closeRedis(); err != nil {
		log.Error().Err(err).Msg("error closing redis client")
	}
	pool.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error flushing traces")
	}
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
