package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/spin-reward-engine/internal/metrics"
	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

var tracer = otel.Tracer("github.com/fairyhunter13/spin-reward-engine/internal/service")

// ConfigService reads and replaces the reward config. Reads of the active
// config go through an optional cache; concurrent misses share one load.
type ConfigService struct {
	pool  TxBeginner
	repo  ConfigRepositoryInterface
	cache ConfigCache
	group singleflight.Group
	now   func() time.Time
}

// NewConfigService creates a new ConfigService. cache may be nil.
func NewConfigService(pool *pgxpool.Pool, repo ConfigRepositoryInterface, cache ConfigCache) *ConfigService {
	return NewConfigServiceWithTxBeginner(pool, repo, cache)
}

// NewConfigServiceWithTxBeginner creates a ConfigService with a custom TxBeginner.
// Primarily used for testing.
func NewConfigServiceWithTxBeginner(pool TxBeginner, repo ConfigRepositoryInterface, cache ConfigCache) *ConfigService {
	return &ConfigService{pool: pool, repo: repo, cache: cache, now: time.Now}
}

// Active returns the active config, or nil if the wheel is switched off.
func (s *ConfigService) Active(ctx context.Context) (*model.RewardConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("reward config cache read failed")
		}
		if cfg != nil {
			metrics.ConfigCacheLookups.WithLabelValues("hit").Inc()
			return cfg, nil
		}
		metrics.ConfigCacheLookups.WithLabelValues("miss").Inc()
	}

	// The load is shared with every waiter, so it must outlive this caller.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("active", func() (any, error) {
		cfg, err := s.repo.GetActive(loadCtx)
		if err != nil {
			return nil, err
		}
		if cfg != nil && s.cache != nil {
			if err := s.cache.Set(loadCtx, cfg); err != nil {
				log.Warn().Err(err).Msg("reward config cache write failed")
			}
		}
		return cfg, nil
	})
	if err != nil {
		return nil, persistence("load active reward config", err)
	}
	return v.(*model.RewardConfig), nil
}

// Current returns the most recently written config for the admin view.
// Returns ErrNoActiveConfig if none was ever written.
func (s *ConfigService) Current(ctx context.Context) (*model.RewardConfig, error) {
	cfg, err := s.repo.GetLatest(ctx)
	if err != nil {
		return nil, persistence("load reward config", err)
	}
	if cfg == nil {
		return nil, ErrNoActiveConfig
	}
	return cfg, nil
}

// Update validates cfg and stores it as the current config, replacing the
// active one. Invalid configs are rejected with a *ConfigurationError before
// anything is written.
func (s *ConfigService) Update(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error) {
	ctx, span := tracer.Start(ctx, "ConfigService.Update")
	defer span.End()

	if cfg == nil {
		return nil, ErrInvalidRequest
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	cfg.ID = uuid.New()
	cfg.UpdatedAt = s.now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.ReplaceActive(ctx, tx, cfg); err != nil {
		if errors.Is(err, ErrConfigConflict) {
			return nil, ErrConfigConflict
		}
		return nil, persistence("replace reward config", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistence("commit reward config", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("reward config cache invalidation failed")
		}
	}

	log.Info().
		Str("config_id", cfg.ID.String()).
		Bool("active", cfg.IsActive).
		Int("prizes", len(cfg.Prizes)).
		Msg("reward config updated")
	return cfg, nil
}

