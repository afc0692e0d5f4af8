// Package ledger holds the redemption rules of a coupon. Everything here is
// pure: callers load the coupon and its usage ledger, the functions decide.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// Reason is a user-displayable explanation of why a coupon cannot be redeemed.
type Reason string

const (
	ReasonInactive            Reason = "coupon is no longer active"
	ReasonNotYetValid         Reason = "coupon is not valid yet"
	ReasonExpired             Reason = "coupon has expired"
	ReasonUsageLimitReached   Reason = "coupon usage limit has been reached"
	ReasonPerUserLimitReached Reason = "you have already used this coupon the maximum number of times"
	ReasonBelowMinimum        Reason = "cart subtotal is below the coupon's minimum order value"
)

// Result is the outcome of ValidateForRedemption.
type Result struct {
	OK     bool
	Reason Reason
}

var hundred = decimal.NewFromInt(100)

// ValidateForRedemption checks, in order: active flag, validity window,
// global usage, the subject's usage and the minimum order value. The first
// failing check wins.
func ValidateForRedemption(c *model.Coupon, subjectKey string, subtotal decimal.Decimal, now time.Time) Result {
	switch {
	case !c.IsActive:
		return Result{Reason: ReasonInactive}
	case now.Before(c.ValidFrom):
		return Result{Reason: ReasonNotYetValid}
	case now.After(c.ValidUntil):
		return Result{Reason: ReasonExpired}
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return Result{Reason: ReasonUsageLimitReached}
	case c.UsageLimitPerUser != nil && c.UsageFor(subjectKey) >= *c.UsageLimitPerUser:
		return Result{Reason: ReasonPerUserLimitReached}
	case subtotal.LessThan(c.MinOrderValue):
		return Result{Reason: ReasonBelowMinimum}
	}
	return Result{OK: true}
}

// ComputeDiscount returns the amount the coupon takes off subtotal. The result
// is always within [0, subtotal] and never above MaxDiscount when one is set.
// Free-delivery coupons discount nothing from the subtotal; the cart drops its
// delivery fee instead.
func ComputeDiscount(c *model.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || c.DiscountValue.IsNegative() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case model.DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred)
	case model.DiscountBOGO:
		// Buy one get one: the value is a percentage of the free half.
		amount = subtotal.Div(decimal.NewFromInt(2)).Mul(c.DiscountValue).Div(hundred)
	case model.DiscountFixed:
		amount = c.DiscountValue
	case model.DiscountFreeDelivery:
		return decimal.Zero
	default:
		return decimal.Zero
	}

	if c.MaxDiscount != nil && amount.GreaterThan(*c.MaxDiscount) {
		amount = *c.MaxDiscount
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.RoundFloor(2)
}

// PriceCart binds c to cart and recomputes its discount and total.
func PriceCart(cart *model.Cart, c *model.Coupon) {
	cart.CouponID = &c.ID
	cart.CouponCode = c.Code
	cart.Discount = ComputeDiscount(c, cart.Subtotal)
	cart.FreeDelivery = c.DiscountType == model.DiscountFreeDelivery

	fee := cart.DeliveryFee
	if cart.FreeDelivery {
		fee = decimal.Zero
	}
	cart.Total = cart.Subtotal.Sub(cart.Discount).Add(fee)
}
