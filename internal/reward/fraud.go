package reward

import (
	"fmt"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// Static review thresholds.
const (
	MaxUnflaggedValue      = 100
	MaxUnflaggedPercentage = 50
)

// Flag is the fraud classifier's verdict. It never blocks issuance.
type Flag struct {
	IsFlagged bool
	Reason    string
}

// Classify marks generous discounts for manual review: a resolved value above
// MaxUnflaggedValue currency units, or a percentage discount of
// MaxUnflaggedPercentage or more. Blank and points prizes are never flagged.
func Classify(prize model.Prize, value int) Flag {
	t, err := prize.Template()
	if err != nil {
		return Flag{}
	}
	if value > MaxUnflaggedValue {
		return Flag{IsFlagged: true, Reason: fmt.Sprintf("discount value %d exceeds %d", value, MaxUnflaggedValue)}
	}
	if t.DiscountType == model.DiscountPercentage && value >= MaxUnflaggedPercentage {
		return Flag{IsFlagged: true, Reason: fmt.Sprintf("percentage discount %d%% is at least %d%%", value, MaxUnflaggedPercentage)}
	}
	return Flag{}
}
