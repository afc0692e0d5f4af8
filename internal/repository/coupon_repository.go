package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

const couponCodeConstraint = "coupons_code_key"

const couponColumns = `id, code, discount_type, discount_value, min_order_value, max_discount,
	valid_from, valid_until, usage_limit, usage_limit_per_user, used_count,
	is_active, is_locked, refunded, revoked_at, COALESCE(revoke_reason, ''),
	origin, COALESCE(owner_key, ''), created_at`

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool database.TxQuerier
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool database.TxQuerier) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Insert inserts a new coupon within a transaction.
// Returns service.ErrCouponCodeTaken if the code already exists.
func (r *CouponRepository) Insert(ctx context.Context, tx database.TxQuerier, c *model.Coupon) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO coupons (id, code, discount_type, discount_value, min_order_value, max_discount,
			valid_from, valid_until, usage_limit, usage_limit_per_user, used_count,
			is_active, is_locked, origin, owner_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Code, string(c.DiscountType), c.DiscountValue, c.MinOrderValue, c.MaxDiscount,
		c.ValidFrom, c.ValidUntil, c.UsageLimit, c.UsageLimitPerUser, c.UsedCount,
		c.IsActive, c.IsLocked, string(c.Origin), nullString(c.OwnerKey), c.CreatedAt)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok && constraint == couponCodeConstraint {
			return service.ErrCouponCodeTaken
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode retrieves a coupon and its usage ledger by code.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	if err := r.loadUsage(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a coupon and its usage ledger by id.
// Returns nil, nil if the coupon is not found.
func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by id %s: %w", id, err)
	}
	if err := r.loadUsage(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CouponRepository) loadUsage(ctx context.Context, c *model.Coupon) error {
	rows, err := r.pool.Query(ctx,
		`SELECT subject_key, count FROM coupon_usages WHERE coupon_id = $1 ORDER BY subject_key`, c.ID)
	if err != nil {
		return fmt.Errorf("get usage for coupon %s: %w", c.Code, err)
	}
	defer rows.Close()

	c.UsedBy = []model.UsageEntry{}
	for rows.Next() {
		var e model.UsageEntry
		if err := rows.Scan(&e.SubjectKey, &e.Count); err != nil {
			return fmt.Errorf("scan coupon usage: %w", err)
		}
		c.UsedBy = append(c.UsedBy, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate coupon usage rows: %w", err)
	}
	return nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c            model.Coupon
		discountType string
		origin       string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.MinOrderValue, &c.MaxDiscount,
		&c.ValidFrom, &c.ValidUntil, &c.UsageLimit, &c.UsageLimitPerUser, &c.UsedCount,
		&c.IsActive, &c.IsLocked, &c.Refunded, &c.RevokedAt, &c.RevokeReason,
		&origin, &c.OwnerKey, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DiscountType = model.DiscountType(discountType)
	if c.Origin, err = model.ParseOrigin(origin); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUsage bumps used_count by one if, and only if, the coupon is
// active and still under its global limit. The check and the write are one
// statement, so concurrent consumers cannot both pass.
// Returns service.ErrLimitExceeded when no row qualified.
func (r *CouponRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.UsageLimits, error) {
	query := `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND is_active AND (usage_limit IS NULL OR used_count < usage_limit)
		RETURNING code, origin, used_count, usage_limit_per_user`

	var (
		limits model.UsageLimits
		origin string
	)
	err := tx.QueryRow(ctx, query, id).Scan(&limits.Code, &origin, &limits.UsedCount, &limits.UsageLimitPerUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrLimitExceeded
		}
		return nil, fmt.Errorf("increment usage for coupon %s: %w", id, err)
	}
	if limits.Origin, err = model.ParseOrigin(origin); err != nil {
		return nil, err
	}
	return &limits, nil
}

// IncrementSubjectUsage creates or bumps the subject's usage entry, refusing
// to go past limit (nil means unlimited). Returns the new count or
// service.ErrLimitExceeded.
func (r *CouponRepository) IncrementSubjectUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID, subjectKey string, limit *int) (int, error) {
	if limit != nil && *limit < 1 {
		return 0, service.ErrLimitExceeded
	}

	query := `INSERT INTO coupon_usages (coupon_id, subject_key, count, updated_at) VALUES ($1, $2, 1, NOW())
		ON CONFLICT (coupon_id, subject_key) DO UPDATE
			SET count = coupon_usages.count + 1, updated_at = NOW()
			WHERE $3::int IS NULL OR coupon_usages.count < $3::int
		RETURNING count`

	var count int
	if err := tx.QueryRow(ctx, query, id, subjectKey, limit).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrLimitExceeded
		}
		return 0, fmt.Errorf("increment usage of %s for %s: %w", id, subjectKey, err)
	}
	return count, nil
}

// Revoke soft-revokes an active coupon. Returns the revoked code, or
// service.ErrCouponAlreadyRevoked if the coupon was not active.
func (r *CouponRepository) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (string, error) {
	query := `UPDATE coupons SET is_active = FALSE, refunded = TRUE, revoked_at = $2, revoke_reason = $3
		WHERE id = $1 AND is_active
		RETURNING code`

	var code string
	if err := r.pool.QueryRow(ctx, query, id, at, reason).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", service.ErrCouponAlreadyRevoked
		}
		return "", fmt.Errorf("revoke coupon %s: %w", id, err)
	}
	return code, nil
}

// Stats counts coupons of an origin and how many were redeemed at least once.
func (r *CouponRepository) Stats(ctx context.Context, origin model.Origin) (issued, redeemed int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE used_count > 0) FROM coupons WHERE origin = $1`
	if err := r.pool.QueryRow(ctx, query, string(origin)).Scan(&issued, &redeemed); err != nil {
		return 0, 0, fmt.Errorf("coupon stats for %s: %w", origin, err)
	}
	return issued, redeemed, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
