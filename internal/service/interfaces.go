package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ConfigRepositoryInterface defines the interface for reward config data access.
type ConfigRepositoryInterface interface {
	GetActive(ctx context.Context) (*model.RewardConfig, error)
	GetLatest(ctx context.Context) (*model.RewardConfig, error)
	ReplaceActive(ctx context.Context, tx database.TxQuerier, cfg *model.RewardConfig) error
}

// SpinRepositoryInterface defines the interface for spin record data access.
type SpinRepositoryInterface interface {
	CountInWindow(ctx context.Context, q database.TxQuerier, subjectKey, windowKey string) (int, error)
	Insert(ctx context.Context, tx database.TxQuerier, rec *model.SpinRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.SpinRecord, error)
	List(ctx context.Context, q model.HistoryQuery) ([]model.SpinRecord, int, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, at time.Time) error
	Totals(ctx context.Context) (total, guest, flagged int, err error)
	PrizeDistribution(ctx context.Context) (map[model.PrizeType]int, error)
}

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, c *model.Coupon) error
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.UsageLimits, error)
	IncrementSubjectUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID, subjectKey string, limit *int) (int, error)
	Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (string, error)
	Stats(ctx context.Context, origin model.Origin) (issued, redeemed int, err error)
}

// PointsRepositoryInterface defines the interface for the points ledger.
type PointsRepositoryInterface interface {
	Credit(ctx context.Context, tx database.TxQuerier, c *model.PointsCredit) error
}

// OrderRepositoryInterface defines the interface for order data access.
type OrderRepositoryInterface interface {
	CountDelivered(ctx context.Context, q database.TxQuerier, userID string) (int, error)
	RecordConsumption(ctx context.Context, tx database.TxQuerier, orderID string, couponID uuid.UUID, subjectKey string) (bool, error)
}

// CartRepositoryInterface defines the interface for cart coupon bindings.
type CartRepositoryInterface interface {
	Get(ctx context.Context, subjectKey string) (*model.Cart, error)
	SaveCouponBinding(ctx context.Context, c *model.Cart) error
}

// ReferralRepositoryInterface defines the interface for referral claims.
type ReferralRepositoryInterface interface {
	MarkClaimed(ctx context.Context, tx database.TxQuerier, couponID uuid.UUID, at time.Time) (*model.Referral, error)
}

// ConfigCache caches the active reward config.
type ConfigCache interface {
	Get(ctx context.Context) (*model.RewardConfig, error)
	Set(ctx context.Context, cfg *model.RewardConfig) error
	Invalidate(ctx context.Context) error
}

// Notifier publishes fire-and-forget notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}
