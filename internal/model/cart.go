package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the coupon-facing view of a subject's cart. Items belong to the cart
// subsystem; only the subtotal and delivery fee are read here.
type Cart struct {
	SubjectKey   string          `json:"-"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	CouponID     *uuid.UUID      `json:"-"`
	CouponCode   string          `json:"couponCode,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	FreeDelivery bool            `json:"freeDelivery"`
	Total        decimal.Decimal `json:"total"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ClearCoupon drops any coupon binding and resets the totals.
func (c *Cart) ClearCoupon() {
	c.CouponID = nil
	c.CouponCode = ""
	c.Discount = decimal.Zero
	c.FreeDelivery = false
	c.Total = c.Subtotal.Add(c.DeliveryFee)
}

// Referral links a referrer and a referee through their reward coupons.
type Referral struct {
	ID               uuid.UUID
	ReferrerID       string
	RefereeID        string
	ReferrerCouponID *uuid.UUID
	RefereeCouponID  *uuid.UUID
	RewardClaimed    bool
	ClaimedAt        *time.Time
}
