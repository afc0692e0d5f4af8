// Package reward contains the spin wheel's decision logic: who may spin,
// which prize they land on, and whether the outcome needs a human look.
package reward

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// Reason codes returned by the evaluator. The message is user-displayable.
const (
	ReasonUnavailable      = "the spin wheel is currently unavailable"
	ReasonTierNotAllowed   = "your membership tier is not eligible for the spin wheel"
	ReasonGuestsNotAllowed = "please sign in to spin the wheel"
	ReasonGuestAlreadySpun = "guests can spin the wheel only once"
)

// GuestWindow is the window key of every guest spin: guests get one spin ever.
const GuestWindow = "lifetime"

// History is what the evaluator needs to know about a subject's past.
type History struct {
	DeliveredOrders int
	SpinsInWindow   int
}

// Decision is the evaluator's verdict. Slot is the spin's position inside the
// window and, together with the window key, forms the record's unique key.
type Decision struct {
	Eligible  bool
	Reason    string
	WindowKey string
	Slot      int
}

// Evaluator decides spin eligibility. Daily windows roll over at midnight in
// loc; weekly windows follow ISO weeks in loc.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an Evaluator for the given timezone. A nil location
// means time.Local.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{loc: loc}
}

// WindowKey returns the eligibility window now falls into for subject.
func (e *Evaluator) WindowKey(cfg *model.RewardConfig, subject model.Subject, now time.Time) string {
	if subject.IsGuest() {
		return GuestWindow
	}
	local := now.In(e.loc)
	if cfg.Frequency.Period == model.PeriodWeekly {
		year, week := local.ISOWeek()
		return fmt.Sprintf("w:%04d-W%02d", year, week)
	}
	return "d:" + local.Format("2006-01-02")
}

// FrequencyReason is the message shown when the window is used up.
func FrequencyReason(cfg *model.RewardConfig) string {
	if cfg.Frequency.Period == model.PeriodWeekly {
		return "you have already used your spins for this week"
	}
	return "you have already used your spins for today"
}

// Evaluate applies the config's rules to subject. cfg may be nil, meaning no
// config is active.
func (e *Evaluator) Evaluate(cfg *model.RewardConfig, subject model.Subject, h History, now time.Time) Decision {
	if cfg == nil || !cfg.IsActive {
		return Decision{Reason: ReasonUnavailable}
	}
	window := e.WindowKey(cfg, subject, now)

	if subject.IsGuest() {
		if !cfg.Eligibility.AllowGuests {
			return Decision{Reason: ReasonGuestsNotAllowed, WindowKey: window}
		}
		if h.SpinsInWindow > 0 {
			return Decision{Reason: ReasonGuestAlreadySpun, WindowKey: window}
		}
		return Decision{Eligible: true, WindowKey: window, Slot: 1}
	}

	if !cfg.Eligibility.AllowsTier(subject.Tier) {
		return Decision{Reason: ReasonTierNotAllowed, WindowKey: window}
	}
	if h.DeliveredOrders < cfg.Eligibility.MinOrders {
		return Decision{
			Reason:    fmt.Sprintf("complete at least %d delivered orders to unlock the spin wheel", cfg.Eligibility.MinOrders),
			WindowKey: window,
		}
	}
	limit := cfg.Frequency.Limit
	if limit < 1 {
		limit = 1
	}
	if h.SpinsInWindow >= limit {
		return Decision{Reason: FrequencyReason(cfg), WindowKey: window}
	}
	return Decision{Eligible: true, WindowKey: window, Slot: h.SpinsInWindow + 1}
}
