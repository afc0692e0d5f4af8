package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

const orderStatusDelivered = "delivered"

// OrderRepository reads order history and records coupon consumptions.
type OrderRepository struct {
	pool database.TxQuerier
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates an OrderRepository with a custom pool interface.
func NewOrderRepositoryWithPool(pool database.TxQuerier) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CountDelivered counts the user's delivered orders.
func (r *OrderRepository) CountDelivered(ctx context.Context, q database.TxQuerier, userID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = $2`,
		userID, orderStatusDelivered).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivered orders of %s: %w", userID, err)
	}
	return n, nil
}

// RecordConsumption claims orderID for a coupon consumption within a
// transaction. It returns false if the order was already consumed and
// service.ErrCouponNotFound if couponID names no coupon.
func (r *OrderRepository) RecordConsumption(ctx context.Context, tx database.TxQuerier, orderID string, couponID uuid.UUID, subjectKey string) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO coupon_consumptions (order_id, coupon_id, subject_key) VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, couponID, subjectKey)
	if _, ok := database.ForeignKeyViolation(err); ok {
		return false, service.ErrCouponNotFound
	}
	if err != nil {
		return false, fmt.Errorf("record consumption of order %s: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}
