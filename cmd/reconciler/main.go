// Command reconciler consumes placed-order events from Kafka and records the
// coupon usage of each order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/spin-reward-engine/internal/config"
	"github.com/fairyhunter13/spin-reward-engine/internal/consumer"
	"github.com/fairyhunter13/spin-reward-engine/internal/notify"
	"github.com/fairyhunter13/spin-reward-engine/internal/repository"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
	"github.com/fairyhunter13/spin-reward-engine/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	initLogger(cfg)

	if !cfg.Kafka.Enabled() {
		log.Fatal().Msg("KAFKA_BROKERS is required by the reconciler")
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("order consumer stopped")
		os.Exit(1)
	}
	log.Info().Msg("reconciler stopped")
}

// run blocks until SIGINT/SIGTERM or a consumer failure. Clients are closed
// before it returns.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName + "-reconciler",
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("error flushing traces")
		}
	}()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	notifier := notify.NewKafkaNotifier(notify.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic))
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Error().Err(err).Msg("error closing notification writer")
		}
	}()

	reconciler := service.NewUsageReconciler(pool,
		repository.NewCouponRepository(pool),
		repository.NewOrderRepository(pool),
		repository.NewReferralRepository(pool),
		notifier,
	)

	reader := consumer.NewReader(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID)
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Msg("error closing order reader")
		}
	}()

	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.OrdersTopic).
		Str("group_id", cfg.Kafka.GroupID).
		Int("workers", cfg.Kafka.Workers).
		Msg("starting order reconciler")

	return consumer.NewOrderConsumer(reader, reconciler, consumer.Options{BatchSize: cfg.Kafka.Workers}).Run(ctx)
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
		return
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
