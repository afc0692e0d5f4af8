package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/spin-reward-engine/internal/metrics"
	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/reward"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// maxCodeAttempts bounds how often a spin is retried after a coupon code collision.
const maxCodeAttempts = 3

// ActiveConfigSource yields the active reward config, or nil when none is active.
type ActiveConfigSource interface {
	Active(ctx context.Context) (*model.RewardConfig, error)
}

// SpinDeps are the stores a SpinService works against.
type SpinDeps struct {
	Configs ActiveConfigSource
	Spins   SpinRepositoryInterface
	Coupons CouponRepositoryInterface
	Points  PointsRepositoryInterface
	Orders  OrderRepositoryInterface
}

// SpinOptions tune a SpinService.
type SpinOptions struct {
	// Location sets the day and week boundaries of spin windows.
	Location *time.Location
	// CouponPrefix is prepended to minted coupon codes.
	CouponPrefix string
	// Timeout bounds a whole spin, retries included. Zero means no bound.
	Timeout time.Duration
}

// SpinService issues spin rewards.
type SpinService struct {
	pool      TxBeginner
	deps      SpinDeps
	evaluator *reward.Evaluator
	selector  *reward.Selector
	codes     reward.CodeGenerator
	timeout   time.Duration
	now       func() time.Time
}

// NewSpinService creates a new SpinService.
func NewSpinService(pool *pgxpool.Pool, deps SpinDeps, opts SpinOptions) *SpinService {
	return NewSpinServiceWithTxBeginner(pool, deps, opts)
}

// NewSpinServiceWithTxBeginner creates a SpinService with a custom TxBeginner.
// Primarily used for testing.
func NewSpinServiceWithTxBeginner(pool TxBeginner, deps SpinDeps, opts SpinOptions) *SpinService {
	return &SpinService{
		pool:      pool,
		deps:      deps,
		evaluator: reward.NewEvaluator(opts.Location),
		selector:  reward.NewSelector(nil),
		codes:     reward.NewCodeGenerator(opts.CouponPrefix),
		timeout:   opts.Timeout,
		now:       time.Now,
	}
}

// Status reports whether the wheel is on and whether subject may spin now.
func (s *SpinService) Status(ctx context.Context, subject model.Subject) (*model.StatusResponse, error) {
	if !subject.Valid() {
		return nil, ErrInvalidRequest
	}

	cfg, err := s.deps.Configs.Active(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsActive {
		return &model.StatusResponse{Reason: reward.ReasonUnavailable, Prizes: []model.PrizeSummary{}}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := s.evaluate(ctx, tx, cfg, subject, s.now())
	if err != nil {
		return nil, err
	}

	return &model.StatusResponse{
		Available: true,
		Eligible:  d.Eligible,
		Reason:    d.Reason,
		Prizes:    cfg.Summaries(),
	}, nil
}

// Spin checks eligibility, draws a prize and persists the outcome in one
// transaction: the spin record, a minted coupon for coupon and bogo prizes,
// and a points credit for points prizes. Nothing is written when the subject
// is not eligible or any write fails.
//
// Returns:
//   - *EligibilityError when the subject may not spin
//   - *ConfigurationError when the active config cannot produce a prize
//   - *PersistenceError on store failures; the spin may be retried
func (s *SpinService) Spin(ctx context.Context, subject model.Subject, client model.ClientInfo) (*model.SpinResponse, error) {
	ctx, span := tracer.Start(ctx, "SpinService.Spin")
	defer span.End()

	if !subject.Valid() {
		return nil, ErrInvalidRequest
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cfg, err := s.deps.Configs.Active(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.IsActive {
		metrics.SpinsRejected.WithLabelValues("unavailable").Inc()
		return nil, &EligibilityError{Reason: reward.ReasonUnavailable}
	}

	for attempt := 1; ; attempt++ {
		rec, err := s.spinOnce(ctx, cfg, subject, client)
		if errors.Is(err, ErrCouponCodeTaken) && attempt < maxCodeAttempts {
			log.Warn().Int("attempt", attempt).Str("subject", subject.Key()).Msg("coupon code collision, retrying spin")
			continue
		}
		if err != nil {
			return nil, s.spinError(cfg, subject, err)
		}

		span.SetAttributes(
			attribute.String("prize.type", string(rec.Prize.Type)),
			attribute.Bool("spin.flagged", rec.Flag.IsFlagged),
		)
		metrics.SpinsTotal.WithLabelValues(string(rec.Prize.Type), metrics.SubjectLabel(rec.IsGuest)).Inc()
		if rec.CouponID != nil {
			metrics.CouponsIssued.WithLabelValues(string(model.OriginSpinWheel)).Inc()
		}
		if rec.Flag.IsFlagged {
			metrics.SpinsFlagged.Inc()
			log.Warn().
				Str("spin_id", rec.ID.String()).
				Str("subject", rec.SubjectKey).
				Str("coupon_code", rec.Prize.CouponCode).
				Str("reason", rec.Flag.Reason).
				Msg("spin flagged for review")
		}

		return &model.SpinResponse{
			SpinID:     rec.ID,
			PrizeType:  rec.Prize.Type,
			Label:      rec.Prize.Label,
			Value:      rec.Prize.Value,
			CouponCode: rec.Prize.CouponCode,
			Message:    spinMessage(rec, cfg),
		}, nil
	}
}

func (s *SpinService) spinError(cfg *model.RewardConfig, subject model.Subject, err error) error {
	var eligErr *EligibilityError
	var confErr *ConfigurationError
	switch {
	case errors.As(err, &eligErr):
		metrics.SpinsRejected.WithLabelValues("ineligible").Inc()
		return err
	case errors.Is(err, ErrSpinSlotTaken):
		// A concurrent spin claimed the same slot first.
		metrics.SpinsRejected.WithLabelValues("concurrent").Inc()
		if subject.IsGuest() {
			return &EligibilityError{Reason: reward.ReasonGuestAlreadySpun}
		}
		return &EligibilityError{Reason: reward.FrequencyReason(cfg)}
	case errors.As(err, &confErr):
		log.Error().Err(err).Str("config_id", cfg.ID.String()).Msg("active reward config cannot be spun")
		return err
	default:
		log.Error().Err(err).Str("subject", subject.Key()).Msg("spin failed")
		return persistence("spin", err)
	}
}

func (s *SpinService) evaluate(ctx context.Context, q database.TxQuerier, cfg *model.RewardConfig, subject model.Subject, now time.Time) (reward.Decision, error) {
	var h reward.History
	var err error

	if !subject.IsGuest() && cfg.Eligibility.MinOrders > 0 {
		h.DeliveredOrders, err = s.deps.Orders.CountDelivered(ctx, q, subject.UserID)
		if err != nil {
			return reward.Decision{}, persistence("count delivered orders", err)
		}
	}

	window := s.evaluator.WindowKey(cfg, subject, now)
	h.SpinsInWindow, err = s.deps.Spins.CountInWindow(ctx, q, subject.Key(), window)
	if err != nil {
		return reward.Decision{}, persistence("count spins", err)
	}

	return s.evaluator.Evaluate(cfg, subject, h, now), nil
}

func (s *SpinService) spinOnce(ctx context.Context, cfg *model.RewardConfig, subject model.Subject, client model.ClientInfo) (*model.SpinRecord, error) {
	now := s.now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Eligibility
	d, err := s.evaluate(ctx, tx, cfg, subject, now)
	if err != nil {
		return nil, err
	}
	if !d.Eligible {
		return nil, &EligibilityError{Reason: d.Reason}
	}

	// 2. Prize selection
	prize, err := s.selector.Pick(cfg.Prizes)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	rec := &model.SpinRecord{
		ID:         uuid.New(),
		SubjectKey: subject.Key(),
		UserID:     subject.UserID,
		GuestID:    subject.GuestID,
		IsGuest:    subject.IsGuest(),
		WindowKey:  d.WindowKey,
		Slot:       d.Slot,
		Prize:      model.PrizeSnapshot{Type: prize.Type, Label: prize.Label},
		ClientIP:   client.IP,
		Device:     client.Device,
		CreatedAt:  now,
	}

	// 3. Payout
	var coupon *model.Coupon
	switch prize.Type {
	case model.PrizeBlank:
	case model.PrizePoints:
		r, err := prize.PointsRange()
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		rec.Prize.Value = s.selector.Draw(r)
	case model.PrizeCoupon, model.PrizeBOGO:
		tmpl, err := prize.Template()
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		rec.Prize.Value = s.selector.Draw(tmpl.DiscountRange)
		code, err := s.codes()
		if err != nil {
			return nil, err
		}
		coupon = mintSpinCoupon(prize.Type, tmpl, rec.Prize.Value, code, subject.Key(), now)
		rec.Prize.CouponCode = coupon.Code
		rec.CouponID = &coupon.ID
	default:
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: unknown prize type %q", model.ErrInvalidRewardConfig, prize.Type)}
	}

	// 4. Fraud annotation
	flag := reward.Classify(prize, rec.Prize.Value)
	rec.Flag = model.FraudFlag{IsFlagged: flag.IsFlagged, Reason: flag.Reason}

	// 5. Persist: coupon before the record that references it, credit after.
	if coupon != nil {
		if err := s.deps.Coupons.Insert(ctx, tx, coupon); err != nil {
			return nil, err
		}
	}
	if err := s.deps.Spins.Insert(ctx, tx, rec); err != nil {
		return nil, err
	}
	if prize.Type == model.PrizePoints && rec.Prize.Value > 0 {
		credit := &model.PointsCredit{
			ID:         uuid.New(),
			SubjectKey: rec.SubjectKey,
			Points:     rec.Prize.Value,
			SpinID:     rec.ID,
			CreatedAt:  now,
		}
		if err := s.deps.Points.Credit(ctx, tx, credit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit spin: %w", err)
	}
	return rec, nil
}

// mintSpinCoupon builds the single-use coupon a spin prize pays out. Bogo
// prizes mint bogo coupons whatever the template's type; value is then the
// percentage taken off the free half.
func mintSpinCoupon(typ model.PrizeType, tmpl model.CouponTemplate, value int, code, ownerKey string, now time.Time) *model.Coupon {
	discountType := tmpl.DiscountType
	if typ == model.PrizeBOGO {
		discountType = model.DiscountBOGO
	}
	one := 1
	perUser := 1
	return &model.Coupon{
		ID:                uuid.New(),
		Code:              code,
		DiscountType:      discountType,
		DiscountValue:     decimal.NewFromInt(int64(value)),
		MinOrderValue:     tmpl.MinOrderValue,
		MaxDiscount:       tmpl.MaxDiscount,
		ValidFrom:         now,
		ValidUntil:        now.AddDate(0, 0, tmpl.ValidityDays),
		UsageLimit:        &one,
		UsageLimitPerUser: &perUser,
		IsActive:          true,
		IsLocked:          true,
		Origin:            model.OriginSpinWheel,
		OwnerKey:          ownerKey,
		CreatedAt:         now,
	}
}

func spinMessage(rec *model.SpinRecord, cfg *model.RewardConfig) string {
	switch rec.Prize.Type {
	case model.PrizePoints:
		return fmt.Sprintf("You won %d points!", rec.Prize.Value)
	case model.PrizeCoupon:
		return fmt.Sprintf("You won %s! Use code %s at checkout.", rec.Prize.Label, rec.Prize.CouponCode)
	case model.PrizeBOGO:
		return fmt.Sprintf("You won a buy-one-get-one deal! Use code %s at checkout.", rec.Prize.CouponCode)
	default:
		if rec.IsGuest {
			return "Better luck next time!"
		}
		if cfg.Frequency.Period == model.PeriodWeekly {
			return "Better luck next time! Try again next week."
		}
		return "Better luck next time! Try again tomorrow."
	}
}
