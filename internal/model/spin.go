package model

import (
	"time"

	"github.com/google/uuid"
)

// PrizeSnapshot freezes what a subject won at spin time.
type PrizeSnapshot struct {
	Type       PrizeType `json:"type"`
	Label      string    `json:"label"`
	Value      int       `json:"value"`
	CouponCode string    `json:"couponCode,omitempty"`
}

// FraudFlag is the review annotation of a spin.
type FraudFlag struct {
	IsFlagged  bool       `json:"isFlagged"`
	Reason     string     `json:"reason,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy string     `json:"reviewedBy,omitempty"`
}

// SpinRecord is the immutable outcome log of one spin attempt.
type SpinRecord struct {
	ID         uuid.UUID     `json:"id"`
	SubjectKey string        `json:"subject"`
	UserID     string        `json:"userId,omitempty"`
	GuestID    string        `json:"guestId,omitempty"`
	IsGuest    bool          `json:"isGuest"`
	WindowKey  string        `json:"windowKey"`
	Slot       int           `json:"slot"`
	Prize      PrizeSnapshot `json:"prize"`
	CouponID   *uuid.UUID    `json:"couponId,omitempty"`
	ClientIP   string        `json:"ip,omitempty"`
	Device     string        `json:"device,omitempty"`
	Flag       FraudFlag     `json:"flaggedForReview"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// ClientInfo is the request metadata stored on a spin record.
type ClientInfo struct {
	IP     string
	Device string
}

// PointsCredit is one entry appended to the points ledger by a spin.
type PointsCredit struct {
	ID         uuid.UUID
	SubjectKey string
	Points     int
	SpinID     uuid.UUID
	CreatedAt  time.Time
}

// DefaultHistoryLimit is the page size used when a history query sets none.
const DefaultHistoryLimit = 20

// HistoryQuery filters GET /admin/reward/history.
type HistoryQuery struct {
	IsFlagged *bool  `query:"isFlagged"`
	UserID    string `query:"userId" validate:"max=255"`
	Page      int    `query:"page" validate:"gte=0"`
	Limit     int    `query:"limit" validate:"gte=0,lte=100"`
}

// HistoryPage is one page of spin records.
type HistoryPage struct {
	Items []SpinRecord `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// ReviewSpinRequest is the DTO for POST /admin/reward/history/:spinId/review.
type ReviewSpinRequest struct {
	ReviewedBy string `json:"reviewedBy" validate:"required,notblank,max=255"`
}

// SpinAnalytics is the API response for GET /admin/reward/analytics.
type SpinAnalytics struct {
	TotalSpins        int               `json:"totalSpins"`
	GuestSpins        int               `json:"guestSpins"`
	PrizeDistribution map[PrizeType]int `json:"prizeDistribution"`
	CouponsIssued     int               `json:"couponsIssued"`
	CouponsRedeemed   int               `json:"couponsRedeemed"`
	RedemptionRate    float64           `json:"redemptionRate"`
	FlaggedCount      int               `json:"flaggedCount"`
}
