package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// singleActiveConstraint is the partial unique index allowing one active config.
const singleActiveConstraint = "reward_configs_single_active"

const configColumns = `id, name, is_active, period, spin_limit, min_orders, tiers, allow_guests, prizes, updated_at`

// ConfigRepository stores reward configs. Every update inserts a new row, so
// older configs remain as history.
type ConfigRepository struct {
	pool database.TxQuerier
}

// NewConfigRepository creates a new ConfigRepository with the given pool.
func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// NewConfigRepositoryWithPool creates a ConfigRepository with a custom pool interface.
func NewConfigRepositoryWithPool(pool database.TxQuerier) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// GetActive returns the active config, or nil, nil if none is active.
func (r *ConfigRepository) GetActive(ctx context.Context) (*model.RewardConfig, error) {
	cfg, err := scanConfig(r.pool.QueryRow(ctx,
		`SELECT `+configColumns+` FROM reward_configs WHERE is_active`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active reward config: %w", err)
	}
	return cfg, nil
}

// GetLatest returns the most recently written config, active or not.
// Returns nil, nil if no config was ever written.
func (r *ConfigRepository) GetLatest(ctx context.Context) (*model.RewardConfig, error) {
	cfg, err := scanConfig(r.pool.QueryRow(ctx,
		`SELECT `+configColumns+` FROM reward_configs ORDER BY updated_at DESC, id LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest reward config: %w", err)
	}
	return cfg, nil
}

// ReplaceActive deactivates whatever config is active and stores cfg as the
// new current one, within a transaction. An inactive cfg switches the wheel off.
// Returns service.ErrConfigConflict if a concurrent update activated another
// config first.
func (r *ConfigRepository) ReplaceActive(ctx context.Context, tx database.TxQuerier, cfg *model.RewardConfig) error {
	prizes, err := json.Marshal(cfg.Prizes)
	if err != nil {
		return fmt.Errorf("encode prizes: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE reward_configs SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("deactivate reward configs: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reward_configs (id, name, is_active, period, spin_limit, min_orders, tiers, allow_guests, prizes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		cfg.ID, cfg.Name, cfg.IsActive, string(cfg.Frequency.Period), cfg.Frequency.Limit,
		cfg.Eligibility.MinOrders, cfg.Eligibility.Tiers, cfg.Eligibility.AllowGuests, prizes, cfg.UpdatedAt)
	if constraint, ok := database.UniqueViolation(err); ok && constraint == singleActiveConstraint {
		return service.ErrConfigConflict
	}
	if err != nil {
		return fmt.Errorf("insert reward config: %w", err)
	}
	return nil
}

func scanConfig(row pgx.Row) (*model.RewardConfig, error) {
	var (
		cfg    model.RewardConfig
		period string
		prizes []byte
	)
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.IsActive, &period, &cfg.Frequency.Limit,
		&cfg.Eligibility.MinOrders, &cfg.Eligibility.Tiers, &cfg.Eligibility.AllowGuests, &prizes, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg.Frequency.Period = model.Period(period)
	if err := json.Unmarshal(prizes, &cfg.Prizes); err != nil {
		return nil, fmt.Errorf("decode prizes of config %s: %w", cfg.ID, err)
	}
	return &cfg, nil
}
