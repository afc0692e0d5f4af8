package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// RedemptionServiceInterface defines the cart coupon business logic.
type RedemptionServiceInterface interface {
	ApplyToCart(ctx context.Context, subject model.Subject, code string) (*model.Cart, error)
	RemoveFromCart(ctx context.Context, subject model.Subject) (*model.Cart, error)
	GetCoupon(ctx context.Context, code string) (*model.CouponView, error)
}

// CartHandler handles coupon previews on carts and coupon lookups.
type CartHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewCartHandler creates a new CartHandler with the given service and validator.
func NewCartHandler(svc RedemptionServiceInterface, v *validator.Validate) *CartHandler {
	return &CartHandler{service: svc, validator: v}
}

// ApplyCoupon handles POST /cart/coupon/apply.
func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	subject, ok := SubjectFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	}

	var req model.ApplyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	cart, err := h.service.ApplyToCart(c.UserContext(), subject, req.CouponCode)
	if err != nil {
		return respondError(c, err, "apply coupon")
	}
	return c.JSON(cart)
}

// RemoveCoupon handles POST /cart/coupon/remove.
func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	subject, ok := SubjectFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	}

	cart, err := h.service.RemoveFromCart(c.UserContext(), subject)
	if err != nil {
		return respondError(c, err, "remove coupon")
	}
	return c.JSON(cart)
}

// GetCoupon handles GET /coupons/:code.
func (h *CartHandler) GetCoupon(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	view, err := h.service.GetCoupon(c.UserContext(), code)
	if err != nil {
		return respondError(c, err, "get coupon")
	}
	return c.JSON(view)
}
