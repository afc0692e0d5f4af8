package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

// ReconcilerInterface records coupon usage for placed orders.
type ReconcilerInterface interface {
	Consume(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*service.ConsumeResult, error)
}

// OrderHandler handles callbacks from the order subsystem.
type OrderHandler struct {
	reconciler ReconcilerInterface
	validator  *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(r ReconcilerInterface, v *validator.Validate) *OrderHandler {
	return &OrderHandler{reconciler: r, validator: v}
}

// ConsumeCoupon handles POST /internal/orders/coupon/consume. A 409 tells
// the order subsystem to place the order without the discount.
func (h *OrderHandler) ConsumeCoupon(c *fiber.Ctx) error {
	var req model.ConsumeCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}
	couponID, err := uuid.Parse(req.CouponID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: couponId must be a UUID"})
	}

	subject := model.Subject{UserID: req.UserID, GuestID: req.GuestID}
	res, err := h.reconciler.Consume(c.UserContext(), req.OrderID, couponID, subject)
	if err != nil {
		return respondError(c, err, "consume coupon")
	}
	return c.JSON(res)
}
