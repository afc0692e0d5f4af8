package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is the strategy a coupon uses to compute its discount.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeDelivery DiscountType = "free_delivery"
	DiscountBOGO         DiscountType = "bogo"
)

// Valid reports whether d is one of the known discount types.
func (d DiscountType) Valid() bool {
	switch d {
	case DiscountPercentage, DiscountFixed, DiscountFreeDelivery, DiscountBOGO:
		return true
	}
	return false
}

// Origin records which flow minted a coupon. It is a closed set; use ParseOrigin
// when reading it from storage.
type Origin string

const (
	OriginSpinWheel        Origin = "spin_wheel"
	OriginReferralReferrer Origin = "referral_referrer"
	OriginReferralReferee  Origin = "referral_referee"
	OriginAdmin            Origin = "admin"
)

// ParseOrigin converts a stored origin tag into an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(s); o {
	case OriginSpinWheel, OriginReferralReferrer, OriginReferralReferee, OriginAdmin:
		return o, nil
	}
	return "", fmt.Errorf("unknown coupon origin %q", s)
}

// ClaimsReferral reports whether consuming a coupon of this origin claims a
// referral reward. Only the referee's coupon does; the referrer spending
// their own reward coupon claims nothing.
func (o Origin) ClaimsReferral() bool {
	switch o {
	case OriginReferralReferee:
		return true
	case OriginReferralReferrer, OriginSpinWheel, OriginAdmin:
		return false
	}
	return false
}

// UsageEntry is one subject's redemption count for a coupon.
type UsageEntry struct {
	SubjectKey string `json:"subject"`
	Count      int    `json:"count"`
}

// Coupon is a redeemable discount instrument.
type Coupon struct {
	ID                uuid.UUID
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderValue     decimal.Decimal
	MaxDiscount       *decimal.Decimal
	ValidFrom         time.Time
	ValidUntil        time.Time
	UsageLimit        *int // nil means unlimited
	UsageLimitPerUser *int // nil means unlimited
	UsedCount         int
	UsedBy            []UsageEntry
	IsActive          bool
	IsLocked          bool
	Refunded          bool
	RevokedAt         *time.Time
	RevokeReason      string
	Origin            Origin
	OwnerKey          string
	CreatedAt         time.Time
}

// UsageFor returns how many times subjectKey has redeemed the coupon.
func (c *Coupon) UsageFor(subjectKey string) int {
	for _, e := range c.UsedBy {
		if e.SubjectKey == subjectKey {
			return e.Count
		}
	}
	return 0
}

// UsageLimits is what the usage reconciler learns from the atomic increment.
type UsageLimits struct {
	Code              string
	Origin            Origin
	UsedCount         int
	UsageLimitPerUser *int
}

// CouponView is the API response for GET /coupons/:code.
type CouponView struct {
	Code              string           `json:"code"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderValue     decimal.Decimal  `json:"minOrderValue"`
	MaxDiscount       *decimal.Decimal `json:"maxDiscount,omitempty"`
	ValidFrom         time.Time        `json:"validFrom"`
	ValidUntil        time.Time        `json:"validUntil"`
	UsageLimit        *int             `json:"usageLimit"`
	UsageLimitPerUser *int             `json:"usageLimitPerUser"`
	UsedCount         int              `json:"usedCount"`
	IsActive          bool             `json:"isActive"`
	Origin            Origin           `json:"origin"`
}

// View converts the coupon into its API representation.
func (c *Coupon) View() *CouponView {
	return &CouponView{
		Code:              c.Code,
		DiscountType:      c.DiscountType,
		DiscountValue:     c.DiscountValue,
		MinOrderValue:     c.MinOrderValue,
		MaxDiscount:       c.MaxDiscount,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		UsageLimit:        c.UsageLimit,
		UsageLimitPerUser: c.UsageLimitPerUser,
		UsedCount:         c.UsedCount,
		IsActive:          c.IsActive,
		Origin:            c.Origin,
	}
}

// ApplyCouponRequest is the DTO for POST /cart/coupon/apply.
type ApplyCouponRequest struct {
	CouponCode string `json:"couponCode" validate:"required,notblank,max=64,couponcode"`
}

// RevokeCouponRequest is the DTO for POST /admin/reward/coupon/:spinId/revoke.
type RevokeCouponRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

// ConsumeCouponRequest is sent by the order subsystem once an order is placed.
type ConsumeCouponRequest struct {
	OrderID  string `json:"orderId" validate:"required,notblank,max=255"`
	CouponID string `json:"couponId" validate:"required,uuid"`
	UserID   string `json:"userId" validate:"required_without=GuestID,max=255"`
	GuestID  string `json:"guestId" validate:"required_without=UserID,max=255"`
}
