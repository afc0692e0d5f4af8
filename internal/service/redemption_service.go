package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/spin-reward-engine/internal/ledger"
	"github.com/fairyhunter13/spin-reward-engine/internal/metrics"
	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// ReasonNotOwner is shown when a coupon locked to another subject is applied.
const ReasonNotOwner = "this coupon belongs to another account"

// RedemptionService previews coupons against carts. It never touches usage
// counters; those move only when an order is placed.
type RedemptionService struct {
	coupons CouponRepositoryInterface
	carts   CartRepositoryInterface
	now     func() time.Time
}

// NewRedemptionService creates a new RedemptionService.
func NewRedemptionService(coupons CouponRepositoryInterface, carts CartRepositoryInterface) *RedemptionService {
	return &RedemptionService{coupons: coupons, carts: carts, now: time.Now}
}

// ApplyToCart validates code against the subject's cart and binds it.
//
// Returns:
//   - ErrCartNotFound if the subject has no cart
//   - ErrCouponNotFound if no coupon has that code
//   - *RedemptionError if the coupon cannot be redeemed right now
func (s *RedemptionService) ApplyToCart(ctx context.Context, subject model.Subject, code string) (*model.Cart, error) {
	ctx, span := tracer.Start(ctx, "RedemptionService.ApplyToCart")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if !subject.Valid() || code == "" {
		return nil, ErrInvalidRequest
	}

	cart, err := s.carts.Get(ctx, subject.Key())
	if err != nil {
		return nil, persistence("load cart", err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, persistence("load coupon", err)
	}
	if coupon == nil {
		metrics.CouponPreviews.WithLabelValues("not_found").Inc()
		return nil, ErrCouponNotFound
	}

	if coupon.IsLocked && coupon.OwnerKey != "" && coupon.OwnerKey != subject.Key() {
		metrics.CouponPreviews.WithLabelValues("rejected").Inc()
		return nil, &RedemptionError{Reason: ReasonNotOwner}
	}
	now := s.now()
	if res := ledger.ValidateForRedemption(coupon, subject.Key(), cart.Subtotal, now); !res.OK {
		metrics.CouponPreviews.WithLabelValues("rejected").Inc()
		return nil, &RedemptionError{Reason: string(res.Reason)}
	}

	ledger.PriceCart(cart, coupon)
	cart.UpdatedAt = now
	if err := s.carts.SaveCouponBinding(ctx, cart); err != nil {
		return nil, persistence("save cart coupon", err)
	}

	metrics.CouponPreviews.WithLabelValues("applied").Inc()
	log.Debug().
		Str("subject", subject.Key()).
		Str("coupon_code", coupon.Code).
		Str("discount", cart.Discount.String()).
		Msg("coupon applied to cart")
	return cart, nil
}

// RemoveFromCart drops any coupon from the subject's cart.
// Returns ErrCartNotFound if the subject has no cart.
func (s *RedemptionService) RemoveFromCart(ctx context.Context, subject model.Subject) (*model.Cart, error) {
	if !subject.Valid() {
		return nil, ErrInvalidRequest
	}

	cart, err := s.carts.Get(ctx, subject.Key())
	if err != nil {
		return nil, persistence("load cart", err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	cart.ClearCoupon()
	cart.UpdatedAt = s.now()
	if err := s.carts.SaveCouponBinding(ctx, cart); err != nil {
		return nil, persistence("clear cart coupon", err)
	}
	return cart, nil
}

// GetCoupon returns the public view of a coupon.
// Returns ErrCouponNotFound if the coupon doesn't exist.
func (s *RedemptionService) GetCoupon(ctx context.Context, code string) (*model.CouponView, error) {
	coupon, err := s.coupons.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, persistence("load coupon", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	return coupon.View(), nil
}
