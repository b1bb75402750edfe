// Package scoring derives a bounded display score from an item's ordinal
// position and decides when a user's list is large enough to show it.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Score bounds and defaults.
const (
	MaxScore                 = 10.0
	DefaultMinRankedForScore = 6
)

// ErrInvalidPosition is returned when a position is outside 1..total.
var ErrInvalidPosition = errors.New("position outside 1..total")

// Validate reports whether position is a valid slot of a list of total items.
func Validate(position, total int) error {
	if total < 1 || position < 1 || position > total {
		return fmt.Errorf("%w: position=%d total=%d", ErrInvalidPosition, position, total)
	}
	return nil
}

// DeriveScore maps a position within a list of total items to a score in
// [0, 10] with one decimal of precision. A lone item scores 10. Positions
// outside 1..total are clamped.
func DeriveScore(position, total int) float64 {
	if total <= 1 {
		return MaxScore
	}
	position = max(1, min(position, total))
	raw := MaxScore * (1 - float64(position-1)/float64(total-1))
	return math.Round(raw*10) / 10
}

// FormatScore renders a score with exactly one decimal digit.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// Display is the presentable form of a position. Score is nil while the
// gate hides it; a shown 0.0 is still serialized.
type Display struct {
	Shown     bool     `json:"shown"`
	Score     *float64 `json:"score,omitempty"`
	Formatted string   `json:"score_display,omitempty"`
	// Remaining is how many more items must be ranked before scores show.
	Remaining int `json:"remaining,omitempty"`
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinRanked sets the list size from which scores are surfaced.
func WithMinRanked(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.minRanked = n
		}
	}
}

// Gate hides scores until a list reaches a minimum size.
type Gate struct {
	minRanked int
}

// NewGate creates a gate with the default threshold.
func NewGate(opts ...Option) *Gate {
	g := &Gate{minRanked: DefaultMinRankedForScore}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MinRanked returns the configured threshold.
func (g *Gate) MinRanked() int { return g.minRanked }

// Present returns the display for position when the list holds total items.
func (g *Gate) Present(position, total int) Display {
	if total < g.minRanked {
		return Display{Remaining: g.minRanked - total}
	}
	return Shown(DeriveScore(position, total))
}

// Shown returns the display of a visible score.
func Shown(score float64) Display {
	return Display{Shown: true, Score: &score, Formatted: FormatScore(score)}
}
