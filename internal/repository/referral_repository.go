package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/pkg/database"
)

// ReferralRepository tracks referral reward claims.
type ReferralRepository struct {
	pool database.TxQuerier
}

// NewReferralRepository creates a new ReferralRepository with the given pool.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// NewReferralRepositoryWithPool creates a ReferralRepository with a custom pool interface.
func NewReferralRepositoryWithPool(pool database.TxQuerier) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// MarkClaimed flags the referral whose referee coupon is couponID as
// claimed, once. It
// returns the referral when this call made the transition and nil, nil when
// there is no referral or it was already claimed.
func (r *ReferralRepository) MarkClaimed(ctx context.Context, tx database.TxQuerier, couponID uuid.UUID, at time.Time) (*model.Referral, error) {
	var ref model.Referral
	err := tx.QueryRow(ctx,
		`UPDATE referrals SET reward_claimed = TRUE, claimed_at = $2
		WHERE referee_coupon_id = $1 AND NOT reward_claimed
		RETURNING id, referrer_id, referee_id, referrer_coupon_id, referee_coupon_id, reward_claimed, claimed_at`,
		couponID, at).
		Scan(&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.ReferrerCouponID, &ref.RefereeCouponID,
			&ref.RewardClaimed, &ref.ClaimedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark referral of coupon %s claimed: %w", couponID, err)
	}
	return &ref, nil
}
