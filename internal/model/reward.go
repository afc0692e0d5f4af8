package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRewardConfig is wrapped by every RewardConfig validation failure.
	ErrInvalidRewardConfig = errors.New("invalid reward config")

	// ErrWrongPrizeVariant is returned when reading a payload that does not
	// belong to the prize's type.
	ErrWrongPrizeVariant = errors.New("payload does not belong to prize type")
)

// ProbabilityTolerance is how far the prize probabilities may drift from 100.
const ProbabilityTolerance = 0.1

// TierAll in an eligibility tier list admits every tier.
const TierAll = "all"

// PrizeType discriminates the Prize variants.
type PrizeType string

const (
	PrizeBlank  PrizeType = "blank"
	PrizePoints PrizeType = "points"
	PrizeCoupon PrizeType = "coupon"
	PrizeBOGO   PrizeType = "bogo"
)

// Period is the length of an eligibility window.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r Range) validate(field string) error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%w: %s must satisfy 0 <= min <= max", ErrInvalidRewardConfig, field)
	}
	return nil
}

// CouponTemplate describes the coupon minted by coupon and bogo prizes.
type CouponTemplate struct {
	DiscountType  DiscountType     `json:"discountType"`
	DiscountRange Range            `json:"discountRange"`
	ValidityDays  int              `json:"validityDays"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
}

// Prize is one weighted outcome of a spin. The payload depends on Type:
// points prizes carry a points range, coupon and bogo prizes carry a coupon
// template, blank prizes carry nothing. Build prizes with the New*Prize
// constructors or by unmarshalling JSON.
type Prize struct {
	ID          string
	Type        PrizeType
	Label       string
	Probability float64

	points   *Range
	template *CouponTemplate
}

// NewBlankPrize returns a prize that pays nothing.
func NewBlankPrize(id, label string, probability float64) Prize {
	return Prize{ID: id, Type: PrizeBlank, Label: label, Probability: probability}
}

// NewPointsPrize returns a prize that credits a number of points drawn from r.
func NewPointsPrize(id, label string, probability float64, r Range) Prize {
	return Prize{ID: id, Type: PrizePoints, Label: label, Probability: probability, points: &r}
}

// NewCouponPrize returns a coupon or bogo prize minting coupons from t.
func NewCouponPrize(id string, typ PrizeType, label string, probability float64, t CouponTemplate) Prize {
	return Prize{ID: id, Type: typ, Label: label, Probability: probability, template: &t}
}

// PointsRange returns the payout range of a points prize.
func (p Prize) PointsRange() (Range, error) {
	if p.Type != PrizePoints || p.points == nil {
		return Range{}, fmt.Errorf("%w: points range on %s prize", ErrWrongPrizeVariant, p.Type)
	}
	return *p.points, nil
}

// Template returns the coupon template of a coupon or bogo prize.
func (p Prize) Template() (CouponTemplate, error) {
	if (p.Type != PrizeCoupon && p.Type != PrizeBOGO) || p.template == nil {
		return CouponTemplate{}, fmt.Errorf("%w: coupon template on %s prize", ErrWrongPrizeVariant, p.Type)
	}
	return *p.template, nil
}

type prizeJSON struct {
	ID             string          `json:"id"`
	Type           PrizeType       `json:"type"`
	Label          string          `json:"label"`
	Probability    float64         `json:"probability"`
	PointsRange    *Range          `json:"pointsRange,omitempty"`
	CouponTemplate *CouponTemplate `json:"couponTemplate,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Prize) MarshalJSON() ([]byte, error) {
	return json.Marshal(prizeJSON{
		ID:             p.ID,
		Type:           p.Type,
		Label:          p.Label,
		Probability:    p.Probability,
		PointsRange:    p.points,
		CouponTemplate: p.template,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Payload/type mismatches are kept
// as-is and reported by Validate.
func (p *Prize) UnmarshalJSON(data []byte) error {
	var w prizeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Prize{
		ID:          w.ID,
		Type:        w.Type,
		Label:       w.Label,
		Probability: w.Probability,
		points:      w.PointsRange,
		template:    w.CouponTemplate,
	}
	return nil
}

// Validate checks that the prize's payload matches its type.
func (p Prize) Validate() error {
	if strings.TrimSpace(p.Label) == "" {
		return fmt.Errorf("%w: prize %q has no label", ErrInvalidRewardConfig, p.ID)
	}
	if p.Probability < 0 || p.Probability > 100 {
		return fmt.Errorf("%w: prize %q probability must be within 0-100", ErrInvalidRewardConfig, p.ID)
	}

	switch p.Type {
	case PrizeBlank:
		if p.points != nil || p.template != nil {
			return fmt.Errorf("%w: blank prize %q must not carry a payout", ErrInvalidRewardConfig, p.ID)
		}
	case PrizePoints:
		if p.template != nil {
			return fmt.Errorf("%w: points prize %q must not carry a coupon template", ErrInvalidRewardConfig, p.ID)
		}
		if p.points == nil {
			return fmt.Errorf("%w: points prize %q needs pointsRange", ErrInvalidRewardConfig, p.ID)
		}
		return p.points.validate("pointsRange")
	case PrizeCoupon, PrizeBOGO:
		if p.points != nil {
			return fmt.Errorf("%w: %s prize %q must not carry a points range", ErrInvalidRewardConfig, p.Type, p.ID)
		}
		if p.template == nil {
			return fmt.Errorf("%w: %s prize %q needs couponTemplate", ErrInvalidRewardConfig, p.Type, p.ID)
		}
		t := p.template
		if t.DiscountType != DiscountPercentage && t.DiscountType != DiscountFixed && t.DiscountType != DiscountFreeDelivery {
			return fmt.Errorf("%w: prize %q has unsupported discount type %q", ErrInvalidRewardConfig, p.ID, t.DiscountType)
		}
		if t.ValidityDays < 1 {
			return fmt.Errorf("%w: prize %q validityDays must be at least 1", ErrInvalidRewardConfig, p.ID)
		}
		if t.MinOrderValue.IsNegative() {
			return fmt.Errorf("%w: prize %q minOrderValue must not be negative", ErrInvalidRewardConfig, p.ID)
		}
		if t.MaxDiscount != nil && !t.MaxDiscount.IsPositive() {
			return fmt.Errorf("%w: prize %q maxDiscount must be positive", ErrInvalidRewardConfig, p.ID)
		}
		return t.DiscountRange.validate("discountRange")
	default:
		return fmt.Errorf("%w: prize %q has unknown type %q", ErrInvalidRewardConfig, p.ID, p.Type)
	}
	return nil
}

// Frequency bounds how often a registered subject may spin.
type Frequency struct {
	Period Period `json:"period"`
	Limit  int    `json:"limit"`
}

// EligibilityRules decide who may spin at all.
type EligibilityRules struct {
	MinOrders   int      `json:"minOrders"`
	Tiers       []string `json:"tiers"`
	AllowGuests bool     `json:"allowGuests"`
}

// AllowsTier reports whether tier is admitted by the rule set.
func (e EligibilityRules) AllowsTier(tier string) bool {
	for _, t := range e.Tiers {
		if t == TierAll || strings.EqualFold(t, tier) {
			return true
		}
	}
	return false
}

// RewardConfig is the admin-defined spin wheel. At most one is active.
type RewardConfig struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name" validate:"required,notblank,max=255"`
	IsActive    bool             `json:"isActive"`
	Frequency   Frequency        `json:"frequency"`
	Eligibility EligibilityRules `json:"eligibility"`
	Prizes      []Prize          `json:"prizes" validate:"required,min=1"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProbabilitySum returns the sum of all prize probabilities.
func (c *RewardConfig) ProbabilitySum() float64 {
	var sum float64
	for _, p := range c.Prizes {
		sum += p.Probability
	}
	return sum
}

// Validate enforces the write-time invariants of a config.
func (c *RewardConfig) Validate() error {
	if len(c.Prizes) == 0 {
		return fmt.Errorf("%w: at least one prize is required", ErrInvalidRewardConfig)
	}
	if c.Frequency.Period != PeriodDaily && c.Frequency.Period != PeriodWeekly {
		return fmt.Errorf("%w: frequency period must be daily or weekly", ErrInvalidRewardConfig)
	}
	if c.Frequency.Limit < 1 {
		return fmt.Errorf("%w: frequency limit must be at least 1", ErrInvalidRewardConfig)
	}
	if c.Eligibility.MinOrders < 0 {
		return fmt.Errorf("%w: minOrders must not be negative", ErrInvalidRewardConfig)
	}
	if len(c.Eligibility.Tiers) == 0 {
		return fmt.Errorf("%w: at least one tier (or %q) is required", ErrInvalidRewardConfig, TierAll)
	}

	seen := make(map[string]struct{}, len(c.Prizes))
	for _, p := range c.Prizes {
		if p.ID == "" {
			return fmt.Errorf("%w: every prize needs an id", ErrInvalidRewardConfig)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate prize id %q", ErrInvalidRewardConfig, p.ID)
		}
		seen[p.ID] = struct{}{}
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if sum := c.ProbabilitySum(); math.Abs(sum-100) > ProbabilityTolerance {
		return fmt.Errorf("%w: prize probabilities sum to %.2f, want 100", ErrInvalidRewardConfig, sum)
	}
	return nil
}

// PrizeSummary is the public view of a prize on GET /reward/status.
type PrizeSummary struct {
	Label string    `json:"label"`
	Type  PrizeType `json:"type"`
}

// Summaries lists the prizes without their odds or payouts.
func (c *RewardConfig) Summaries() []PrizeSummary {
	out := make([]PrizeSummary, 0, len(c.Prizes))
	for _, p := range c.Prizes {
		out = append(out, PrizeSummary{Label: p.Label, Type: p.Type})
	}
	return out
}

// StatusResponse is the API response for GET /reward/status.
type StatusResponse struct {
	Available bool           `json:"available"`
	Eligible  bool           `json:"eligible"`
	Reason    string         `json:"reason,omitempty"`
	Prizes    []PrizeSummary `json:"prizes"`
}

// SpinResponse is the API response for POST /reward/spin.
type SpinResponse struct {
	SpinID     uuid.UUID `json:"spinId"`
	PrizeType  PrizeType `json:"prizeType"`
	Label      string    `json:"label"`
	Value      int       `json:"value"`
	CouponCode string    `json:"couponCode,omitempty"`
	Message    string    `json:"message"`
}
