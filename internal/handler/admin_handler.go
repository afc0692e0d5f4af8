package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

// ConfigServiceInterface defines reward config administration.
type ConfigServiceInterface interface {
	Current(ctx context.Context) (*model.RewardConfig, error)
	Update(ctx context.Context, cfg *model.RewardConfig) (*model.RewardConfig, error)
}

// AdminServiceInterface defines spin administration.
type AdminServiceInterface interface {
	History(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error)
	Revoke(ctx context.Context, spinID uuid.UUID, reason string) (*service.RevokeResult, error)
	Review(ctx context.Context, spinID uuid.UUID, reviewer string) (*model.SpinRecord, error)
	Analytics(ctx context.Context) (*model.SpinAnalytics, error)
}

// AdminHandler handles the /admin/reward endpoints.
type AdminHandler struct {
	configs   ConfigServiceInterface
	admin     AdminServiceInterface
	validator *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(configs ConfigServiceInterface, admin AdminServiceInterface, v *validator.Validate) *AdminHandler {
	return &AdminHandler{configs: configs, admin: admin, validator: v}
}

// GetConfig handles GET /admin/reward/config.
func (h *AdminHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Current(c.UserContext())
	if err != nil {
		return respondError(c, err, "get reward config")
	}
	return c.JSON(cfg)
}

// PutConfig handles PUT /admin/reward/config. The submitted config replaces
// the active one.
func (h *AdminHandler) PutConfig(c *fiber.Ctx) error {
	var cfg model.RewardConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	saved, err := h.configs.Update(c.UserContext(), &cfg)
	if err != nil {
		var confErr *service.ConfigurationError
		if errors.As(err, &confErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid reward config", "reason": confErr.Error()})
		}
		return respondError(c, err, "update reward config")
	}
	return c.JSON(saved)
}

// History handles GET /admin/reward/history.
func (h *AdminHandler) History(c *fiber.Ctx) error {
	var q model.HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid query parameters"})
	}
	if err := h.validator.Struct(q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	page, err := h.admin.History(c.UserContext(), q)
	if err != nil {
		return respondError(c, err, "spin history")
	}
	return c.JSON(page)
}

// RevokeCoupon handles POST /admin/reward/coupon/:spinId/revoke.
func (h *AdminHandler) RevokeCoupon(c *fiber.Ctx) error {
	spinID, err := uuid.Parse(c.Params("spinId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: spinId must be a UUID"})
	}

	var req model.RevokeCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	res, err := h.admin.Revoke(c.UserContext(), spinID, req.Reason)
	if err != nil {
		return respondError(c, err, "revoke spin coupon")
	}
	return c.JSON(res)
}

// ReviewSpin handles POST /admin/reward/history/:spinId/review.
func (h *AdminHandler) ReviewSpin(c *fiber.Ctx) error {
	spinID, err := uuid.Parse(c.Params("spinId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: spinId must be a UUID"})
	}

	var req model.ReviewSpinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	rec, err := h.admin.Review(c.UserContext(), spinID, req.ReviewedBy)
	if err != nil {
		return respondError(c, err, "review spin")
	}

	log.Info().Str("spin_id", spinID.String()).Str("reviewed_by", req.ReviewedBy).Msg("spin reviewed")
	return c.JSON(rec)
}

// Analytics handles GET /admin/reward/analytics.
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	a, err := h.admin.Analytics(c.UserContext())
	if err != nil {
		return respondError(c, err, "spin analytics")
	}
	return c.JSON(a)
}
