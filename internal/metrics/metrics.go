// Package metrics holds the Prometheus collectors of the reward engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SpinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_spins_total",
			Help: "Completed spins by prize type and subject kind",
		},
		[]string{"prize_type", "subject"},
	)

	SpinsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_spins_rejected_total",
			Help: "Spin attempts refused before a prize was drawn",
		},
		[]string{"cause"},
	)

	SpinsFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_spins_flagged_total",
			Help: "Spins flagged for manual review",
		},
	)

	CouponsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_coupons_issued_total",
			Help: "Coupons minted by origin",
		},
		[]string{"origin"},
	)

	CouponPreviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_coupon_previews_total",
			Help: "Cart coupon applications by outcome",
		},
		[]string{"result"},
	)

	CouponConsumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_coupon_consumptions_total",
			Help: "Order coupon consumptions by outcome",
		},
		[]string{"result"},
	)

	ConfigCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_config_cache_lookups_total",
			Help: "Active reward config cache lookups",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"path", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reward_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "code"},
	)
)

// SubjectLabel maps a guest flag onto the "subject" label value.
func SubjectLabel(isGuest bool) string {
	if isGuest {
		return "guest"
	}
	return "user"
}
