package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// RevokeResult is the API response for POST /admin/reward/coupon/:spinId/revoke.
type RevokeResult struct {
	SpinID     uuid.UUID `json:"spinId"`
	CouponCode string    `json:"couponCode"`
	Reason     string    `json:"reason"`
	RevokedAt  time.Time `json:"revokedAt"`
}

// AdminService backs the reward admin endpoints.
type AdminService struct {
	spins   SpinRepositoryInterface
	coupons CouponRepositoryInterface
	now     func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(spins SpinRepositoryInterface, coupons CouponRepositoryInterface) *AdminService {
	return &AdminService{spins: spins, coupons: coupons, now: time.Now}
}

// History returns one page of spin records, newest first.
func (s *AdminService) History(ctx context.Context, q model.HistoryQuery) (*model.HistoryPage, error) {
	items, total, err := s.spins.List(ctx, q)
	if err != nil {
		return nil, persistence("list spin history", err)
	}

	page := &model.HistoryPage{Items: items, Total: total, Page: q.Page, Limit: q.Limit}
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.Limit <= 0 {
		page.Limit = model.DefaultHistoryLimit
	}
	return page, nil
}

// Revoke deactivates the coupon a spin issued.
//
// Returns:
//   - ErrSpinNotFound if the spin doesn't exist
//   - ErrSpinWithoutCoupon if the spin issued no coupon
//   - ErrCouponAlreadyRevoked if the coupon is no longer active
func (s *AdminService) Revoke(ctx context.Context, spinID uuid.UUID, reason string) (*RevokeResult, error) {
	ctx, span := tracer.Start(ctx, "AdminService.Revoke")
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidRequest
	}

	rec, err := s.spins.GetByID(ctx, spinID)
	if err != nil {
		return nil, persistence("load spin", err)
	}
	if rec == nil {
		return nil, ErrSpinNotFound
	}
	if rec.CouponID == nil {
		return nil, ErrSpinWithoutCoupon
	}

	at := s.now().UTC()
	code, err := s.coupons.Revoke(ctx, *rec.CouponID, reason, at)
	if err != nil {
		if errors.Is(err, ErrCouponAlreadyRevoked) {
			return nil, err
		}
		return nil, persistence("revoke coupon", err)
	}

	log.Info().
		Str("spin_id", spinID.String()).
		Str("coupon_code", code).
		Str("reason", reason).
		Msg("spin coupon revoked")
	return &RevokeResult{SpinID: spinID, CouponCode: code, Reason: reason, RevokedAt: at}, nil
}

// Review marks a spin as reviewed by reviewer.
// Returns ErrSpinNotFound if the spin doesn't exist.
func (s *AdminService) Review(ctx context.Context, spinID uuid.UUID, reviewer string) (*model.SpinRecord, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, ErrInvalidRequest
	}

	if err := s.spins.MarkReviewed(ctx, spinID, reviewer, s.now().UTC()); err != nil {
		if errors.Is(err, ErrSpinNotFound) {
			return nil, err
		}
		return nil, persistence("review spin", err)
	}

	rec, err := s.spins.GetByID(ctx, spinID)
	if err != nil {
		return nil, persistence("load spin", err)
	}
	if rec == nil {
		return nil, ErrSpinNotFound
	}
	return rec, nil
}

// Analytics aggregates spin and spin-coupon counters. The three aggregates
// are independent and are queried concurrently.
func (s *AdminService) Analytics(ctx context.Context) (*model.SpinAnalytics, error) {
	var (
		out                     model.SpinAnalytics
		dist                    map[model.PrizeType]int
		issued, redeemed        int
		total, guests, flaggedN int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, guests, flaggedN, err = s.spins.Totals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dist, err = s.spins.PrizeDistribution(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		issued, redeemed, err = s.coupons.Stats(gctx, model.OriginSpinWheel)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, persistence("spin analytics", err)
	}

	out.TotalSpins = total
	out.GuestSpins = guests
	out.FlaggedCount = flaggedN
	out.PrizeDistribution = dist
	if out.PrizeDistribution == nil {
		out.PrizeDistribution = map[model.PrizeType]int{}
	}
	out.CouponsIssued = issued
	out.CouponsRedeemed = redeemed
	if issued > 0 {
		out.RedemptionRate = float64(redeemed) / float64(issued)
	}
	return &out, nil
}
