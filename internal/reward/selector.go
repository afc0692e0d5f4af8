package reward

import (
	"errors"
	"math/rand/v2"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// ErrNoPrizes is returned when selecting from an empty prize list.
var ErrNoPrizes = errors.New("no prizes to select from")

// RandSource is the randomness the selector draws from. *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// DefaultSource is safe for concurrent use.
var DefaultSource RandSource = globalSource{}

// Selector picks prizes by weight.
type Selector struct {
	rnd RandSource
}

// NewSelector creates a Selector. A nil source means DefaultSource.
func NewSelector(rnd RandSource) *Selector {
	if rnd == nil {
		rnd = DefaultSource
	}
	return &Selector{rnd: rnd}
}

// Pick draws r uniformly from [0, 100) and returns the first prize whose
// cumulative probability reaches r. Zero-weight prizes are never picked.
// When floating-point drift leaves the total just under r, the last
// weighted prize is returned.
func (s *Selector) Pick(prizes []model.Prize) (model.Prize, error) {
	if len(prizes) == 0 {
		return model.Prize{}, ErrNoPrizes
	}
	return pickAt(prizes, s.rnd.Float64()*100), nil
}

func pickAt(prizes []model.Prize, r float64) model.Prize {
	var cumulative float64
	last := len(prizes) - 1
	for i, p := range prizes {
		if p.Probability <= 0 {
			continue
		}
		last = i
		cumulative += p.Probability
		if cumulative >= r {
			return p
		}
	}
	return prizes[last]
}

// Draw returns an integer uniformly distributed over the inclusive range.
func (s *Selector) Draw(r model.Range) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + s.rnd.IntN(r.Max-r.Min+1)
}
