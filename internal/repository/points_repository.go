package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// PointsRepository appends to the loyalty points ledger.
type PointsRepository struct {
	pool database.TxQuerier
}

// NewPointsRepository creates a new PointsRepository with the given pool.
func NewPointsRepository(pool *pgxpool.Pool) *PointsRepository {
	return &PointsRepository{pool: pool}
}

// NewPointsRepositoryWithPool creates a PointsRepository with a custom pool interface.
func NewPointsRepositoryWithPool(pool database.TxQuerier) *PointsRepository {
	return &PointsRepository{pool: pool}
}

// Credit appends a points entry within a transaction.
func (r *PointsRepository) Credit(ctx context.Context, tx database.TxQuerier, c *model.PointsCredit) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO points_ledger (id, subject_key, points, spin_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.SubjectKey, c.Points, c.SpinID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("credit %d points to %s: %w", c.Points, c.SubjectKey, err)
	}
	return nil
}

