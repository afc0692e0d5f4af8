package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/spin-reward-engine/internal/metrics"
	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// ConsumeResult tells the order subsystem what happened to its coupon.
type ConsumeResult struct {
	CouponCode string `json:"couponCode"`
	UsedCount  int    `json:"usedCount"`
	// AlreadyConsumed is set when the order had been consumed before; nothing changed.
	AlreadyConsumed bool `json:"alreadyConsumed"`
}

// UsageReconciler records coupon usage once an order is durably placed.
type UsageReconciler struct {
	pool      TxBeginner
	coupons   CouponRepositoryInterface
	orders    OrderRepositoryInterface
	referrals ReferralRepositoryInterface
	notifier  Notifier
	now       func() time.Time
}

// NewUsageReconciler creates a new UsageReconciler. notifier may be nil.
func NewUsageReconciler(pool *pgxpool.Pool, coupons CouponRepositoryInterface, orders OrderRepositoryInterface, referrals ReferralRepositoryInterface, notifier Notifier) *UsageReconciler {
	return NewUsageReconcilerWithTxBeginner(pool, coupons, orders, referrals, notifier)
}

// NewUsageReconcilerWithTxBeginner creates a UsageReconciler with a custom TxBeginner.
// Primarily used for testing.
func NewUsageReconcilerWithTxBeginner(pool TxBeginner, coupons CouponRepositoryInterface, orders OrderRepositoryInterface, referrals ReferralRepositoryInterface, notifier Notifier) *UsageReconciler {
	return &UsageReconciler{
		pool:      pool,
		coupons:   coupons,
		orders:    orders,
		referrals: referrals,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Consume counts one use of couponID by subject for orderID. The global
// limit check and increment happen in a single conditional update, so two
// orders racing for the last use cannot both win. Consuming the same order
// twice is a no-op.
//
// Returns ErrLimitExceeded when the coupon can no longer be used; the order
// then proceeds without the discount and the subject is notified.
func (r *UsageReconciler) Consume(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*ConsumeResult, error) {
	ctx, span := tracer.Start(ctx, "UsageReconciler.Consume")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("coupon.id", couponID.String()))

	if strings.TrimSpace(orderID) == "" || couponID == uuid.Nil || !subject.Valid() {
		return nil, ErrInvalidRequest
	}

	result, referral, err := r.consume(ctx, orderID, couponID, subject)
	if errors.Is(err, ErrLimitExceeded) {
		metrics.CouponConsumptions.WithLabelValues("limit_exceeded").Inc()
		log.Info().
			Str("order_id", orderID).
			Str("coupon_id", couponID.String()).
			Str("subject", subject.Key()).
			Msg("coupon not applied, usage limit exceeded")
		r.notify(ctx, subject, model.Notification{
			Type:    model.NotificationCouponNotApplied,
			Message: "Your coupon could not be applied to this order because its usage limit was reached.",
		})
		return nil, ErrLimitExceeded
	}
	if errors.Is(err, ErrCouponNotFound) {
		metrics.CouponConsumptions.WithLabelValues("unknown_coupon").Inc()
		log.Warn().Str("order_id", orderID).Str("coupon_id", couponID.String()).Msg("order references an unknown coupon")
		return nil, ErrCouponNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("coupon consumption failed")
		return nil, persistence("consume coupon", err)
	}

	if result.AlreadyConsumed {
		metrics.CouponConsumptions.WithLabelValues("duplicate").Inc()
		return result, nil
	}
	metrics.CouponConsumptions.WithLabelValues("consumed").Inc()

	if referral != nil {
		r.notify(ctx, model.Subject{UserID: referral.ReferrerID}, model.Notification{
			Type:       model.NotificationReferralClaimed,
			Message:    "Your friend placed their first order. Your referral reward is ready!",
			CouponCode: result.CouponCode,
		})
	}
	return result, nil
}

func (r *UsageReconciler) consume(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*ConsumeResult, *model.Referral, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Claim the order; a redelivered order changes nothing.
	fresh, err := r.orders.RecordConsumption(ctx, tx, orderID, couponID, subject.Key())
	if err != nil {
		return nil, nil, err
	}
	if !fresh {
		return &ConsumeResult{AlreadyConsumed: true}, nil, nil
	}

	// 2. Global limit, checked and bumped atomically.
	limits, err := r.coupons.IncrementUsage(ctx, tx, couponID)
	if err != nil {
		return nil, nil, err
	}

	// 3. Per-subject limit.
	if _, err := r.coupons.IncrementSubjectUsage(ctx, tx, couponID, subject.Key(), limits.UsageLimitPerUser); err != nil {
		return nil, nil, err
	}

	// 4. Referral reward, claimed once by the referee's first order.
	var referral *model.Referral
	if limits.Origin.ClaimsReferral() {
		referral, err = r.referrals.MarkClaimed(ctx, tx, couponID, r.now())
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit consumption: %w", err)
	}
	return &ConsumeResult{CouponCode: limits.Code, UsedCount: limits.UsedCount}, referral, nil
}

func (r *UsageReconciler) notify(ctx context.Context, to model.Subject, n model.Notification) {
	if r.notifier == nil || to.IsGuest() {
		return
	}
	n.UserID = to.UserID
	n.OccurredAt = r.now().UTC()
	if err := r.notifier.Notify(ctx, n); err != nil {
		log.Warn().Err(err).Str("type", string(n.Type)).Str("user_id", n.UserID).Msg("notification failed")
	}
}
