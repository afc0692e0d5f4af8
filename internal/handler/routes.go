package handler

import "github.com/gofiber/fiber/v2"

// Routes groups the handlers and guards mounted by Register.
type Routes struct {
	Health *HealthHandler
	Reward *RewardHandler
	Cart   *CartHandler
	Admin  *AdminHandler
	Orders *OrderHandler

	// Auth guards the user endpoints; Internal guards collaborator callbacks.
	Auth     fiber.Handler
	Internal fiber.Handler
}

// Register mounts every route on app.
func Register(app *fiber.App, r Routes) {
	app.Get("/health", r.Health.Check)

	app.Post("/reward/spin", r.Auth, r.Reward.Spin)
	app.Get("/reward/status", r.Auth, r.Reward.Status)
	app.Post("/cart/coupon/apply", r.Auth, r.Cart.ApplyCoupon)
	app.Post("/cart/coupon/remove", r.Auth, r.Cart.RemoveCoupon)
	app.Get("/coupons/:code", r.Auth, r.Cart.GetCoupon)

	admin := app.Group("/admin/reward")
	admin.Get("/config", r.Admin.GetConfig)
	admin.Put("/config", r.Admin.PutConfig)
	admin.Get("/history", r.Admin.History)
	admin.Post("/history/:spinId/review", r.Admin.ReviewSpin)
	admin.Post("/coupon/:spinId/revoke", r.Admin.RevokeCoupon)
	admin.Get("/analytics", r.Admin.Analytics)

	internal := app.Group("/internal", r.Internal)
	internal.Post("/orders/coupon/consume", r.Orders.ConsumeCoupon)
}
