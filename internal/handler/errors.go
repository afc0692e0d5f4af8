package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

// formatValidationError converts the first validator error into a client message.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_without":
			return "invalid request: " + field + " is required"
		case "notblank":
			return "invalid request: " + field + " cannot be whitespace only"
		case "max":
			return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
		case "lte":
			return "invalid request: " + field + " must be at most " + fe.Param()
		case "gte":
			return "invalid request: " + field + " must be at least " + fe.Param()
		case "uuid":
			return "invalid request: " + field + " must be a UUID"
		case "couponcode":
			return "invalid request: " + field + " is not a valid coupon code"
		default:
			return "invalid request: " + field + " is invalid"
		}
	}
	return "invalid request"
}

// respondError maps service errors to HTTP responses. Errors it does not
// recognise are logged and reported as 500.
func respondError(c *fiber.Ctx, err error, op string) error {
	var (
		eligErr *service.EligibilityError
		redErr  *service.RedemptionError
		confErr *service.ConfigurationError
	)

	switch {
	case errors.As(err, &eligErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not eligible", "reason": eligErr.Reason})
	case errors.As(err, &redErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "coupon not redeemable", "reason": redErr.Reason})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, service.ErrCouponNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "coupon not found"})
	case errors.Is(err, service.ErrSpinNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "spin not found"})
	case errors.Is(err, service.ErrCartNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cart not found"})
	case errors.Is(err, service.ErrNoActiveConfig):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no reward config"})
	case errors.Is(err, service.ErrCouponAlreadyRevoked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "coupon already revoked"})
	case errors.Is(err, service.ErrSpinWithoutCoupon):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "spin did not issue a coupon"})
	case errors.Is(err, service.ErrConfigConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "reward config changed concurrently"})
	case errors.Is(err, service.ErrLimitExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "coupon usage limit exceeded", "applied": false})
	case errors.As(err, &confErr):
		// A broken active config is our fault, not the caller's.
		log.Error().Err(err).Str("op", op).Msg("reward configuration error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reward configuration error"})
	}

	ev := log.Error().Err(err).Str("op", op).Str("request_id", requestID(c))
	if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
		ev = ev.Str("trace_id", sc.TraceID().String())
	}
	ev.Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// requestID returns the id set by the requestid middleware, if any.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
