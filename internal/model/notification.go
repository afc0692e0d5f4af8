package model

import "time"

// NotificationType names the events pushed to the notification service.
type NotificationType string

const (
	NotificationReferralClaimed  NotificationType = "referral_reward_claimed"
	NotificationCouponNotApplied NotificationType = "coupon_not_applied"
)

// Notification is a fire-and-forget message for the notification service.
type Notification struct {
	Type       NotificationType `json:"type"`
	UserID     string           `json:"userId"`
	Message    string           `json:"message"`
	CouponCode string           `json:"couponCode,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// OrderPlacedEvent is what the order subsystem publishes once an order is
// durably created.
type OrderPlacedEvent struct {
	OrderID  string `json:"orderId"`
	CouponID string `json:"couponId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	GuestID  string `json:"guestId,omitempty"`
	Status   string `json:"status"`
}
