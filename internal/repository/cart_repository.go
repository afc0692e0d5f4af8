package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// CartRepository owns the coupon binding and totals of carts.
type CartRepository struct {
	pool database.TxQuerier
}

// NewCartRepository creates a new CartRepository with the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// NewCartRepositoryWithPool creates a CartRepository with a custom pool interface.
func NewCartRepositoryWithPool(pool database.TxQuerier) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the subject's cart, or nil, nil if the subject has none.
func (r *CartRepository) Get(ctx context.Context, subjectKey string) (*model.Cart, error) {
	var c model.Cart
	err := r.pool.QueryRow(ctx,
		`SELECT subject_key, subtotal, delivery_fee, coupon_id, COALESCE(coupon_code, ''),
			discount, free_delivery, total, updated_at
		FROM carts WHERE subject_key = $1`, subjectKey).
		Scan(&c.SubjectKey, &c.Subtotal, &c.DeliveryFee, &c.CouponID, &c.CouponCode,
			&c.Discount, &c.FreeDelivery, &c.Total, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart of %s: %w", subjectKey, err)
	}
	return &c, nil
}

// SaveCouponBinding writes the cart's coupon binding and recomputed totals.
// Returns service.ErrCartNotFound if the cart disappeared meanwhile.
func (r *CartRepository) SaveCouponBinding(ctx context.Context, c *model.Cart) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE carts SET coupon_id = $2, coupon_code = $3, discount = $4, free_delivery = $5,
			total = $6, updated_at = $7
		WHERE subject_key = $1`,
		c.SubjectKey, c.CouponID, nullString(c.CouponCode), c.Discount, c.FreeDelivery, c.Total, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save coupon binding of %s: %w", c.SubjectKey, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCartNotFound
	}
	return nil
}
