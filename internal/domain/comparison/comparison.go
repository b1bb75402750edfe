// Package comparison implements the bucket-scoped binary insertion search
// driven by a human picking the winner of each head-to-head prompt.
//
// Indices are 1-based and refer to the bucket-filtered candidate list, ordered
// by ascending absolute position (index 1 is the best item of the bucket).
// Answers are assumed transitive. Contradictory answers still terminate; the
// most recent answer wins and earlier judgments are not re-validated.
package comparison

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/okian/courtside/internal/domain/model"
)

// Sentinel errors.
var (
	// ErrEmptyComparisonRange signals low > high passed to Init. It is raised
	// with panic because it can only come from broken caller range math.
	ErrEmptyComparisonRange = errors.New("empty comparison range")
	// ErrInvalidResult is returned for an answer that is not a known result.
	ErrInvalidResult = errors.New("invalid comparison result")
)

// State is the ephemeral search window. It is never persisted.
type State struct {
	Low            int `json:"low"`
	High           int `json:"high"`
	Step           int `json:"step"`
	EstimatedTotal int `json:"estimated_total"`
	MidIndex       int `json:"mid_index"`
}

// Outcome is the result of one Advance call: either the next state or the
// final insert position within the filtered list.
type Outcome struct {
	Next     State
	Done     bool
	Position int
}

// Init opens a search over [low, high].
func Init(low, high int) State {
	if low > high {
		panic(fmt.Errorf("%w: low=%d high=%d", ErrEmptyComparisonRange, low, high))
	}
	return State{
		Low:            low,
		High:           high,
		Step:           1,
		EstimatedTotal: EstimateSteps(high - low + 1),
		MidIndex:       (low + high) / 2,
	}
}

// EstimateSteps returns max(1, ceil(log2(n+1))) for a window of n candidates.
func EstimateSteps(n int) int {
	if n < 1 {
		return 1
	}
	return bits.Len(uint(n))
}

// Advance applies one answer about the candidate at s.MidIndex.
func Advance(s State, r model.ComparisonResult) (Outcome, error) {
	low, high := s.Low, s.High
	switch r {
	case model.NewIsBetter:
		high = s.MidIndex - 1
	case model.ExistingIsBetter:
		low = s.MidIndex + 1
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidResult, r)
	}

	if low > high {
		return Outcome{Done: true, Position: low}, nil
	}

	return Outcome{Next: State{
		Low:            low,
		High:           high,
		Step:           s.Step + 1,
		EstimatedTotal: s.EstimatedTotal,
		MidIndex:       (low + high) / 2,
	}}, nil
}

// Oracle answers a prompt about the candidate at the given index.
type Oracle func(mid int) model.ComparisonResult

// Run drives a full search with an oracle and returns the filtered insert
// position together with the number of comparisons asked.
func Run(low, high int, ask Oracle) (position, steps int, err error) {
	s := Init(low, high)
	for {
		steps++
		out, err := Advance(s, ask(s.MidIndex))
		if err != nil {
			return 0, steps, err
		}
		if out.Done {
			return out.Position, steps, nil
		}
		s = out.Next
	}
}
