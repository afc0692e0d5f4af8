package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// SpinServiceInterface defines the spin wheel business logic.
type SpinServiceInterface interface {
	Spin(ctx context.Context, subject model.Subject, client model.ClientInfo) (*model.SpinResponse, error)
	Status(ctx context.Context, subject model.Subject) (*model.StatusResponse, error)
}

// RewardHandler handles the user-facing spin wheel endpoints.
type RewardHandler struct {
	service SpinServiceInterface
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(svc SpinServiceInterface) *RewardHandler {
	return &RewardHandler{service: svc}
}

// Spin handles POST /reward/spin.
func (h *RewardHandler) Spin(c *fiber.Ctx) error {
	subject, ok := SubjectFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	}

	client := model.ClientInfo{
		IP:     c.IP(),
		Device: c.Get("X-Device-Id", c.Get(fiber.HeaderUserAgent)),
	}
	resp, err := h.service.Spin(c.UserContext(), subject, client)
	if err != nil {
		return respondError(c, err, "spin")
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("subject", subject.Key()).
		Str("prize_type", string(resp.PrizeType)).
		Str("coupon_code", resp.CouponCode).
		Msg("spin completed")
	return c.JSON(resp)
}

// Status handles GET /reward/status.
func (h *RewardHandler) Status(c *fiber.Ctx) error {
	subject, ok := SubjectFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	}

	st, err := h.service.Status(c.UserContext(), subject)
	if err != nil {
		return respondError(c, err, "spin status")
	}
	return c.JSON(st)
}
