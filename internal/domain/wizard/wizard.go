// Package wizard holds the step-by-step state of one ranking session:
// loading, an optional fan confirmation, sentiment, comparisons, placement.
//
// A Session is a plain value snapshot. Nothing here touches the Rank Store;
// abandoning a session is just dropping it.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/courtside/internal/domain/affinity"
	"github.com/okian/courtside/internal/domain/comparison"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/placement"
	"github.com/okian/courtside/internal/domain/sentiment"
)

// Step names the current wizard screen.
type Step string

// Wizard steps.
const (
	StepLoading    Step = "loading"
	StepFanConfirm Step = "fan_confirm"
	StepSentiment  Step = "sentiment"
	StepComparison Step = "comparison"
	StepPlacement  Step = "placement"
)

// Sentinel errors.
var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrAlreadyRanked     = errors.New("item already ranked")
)

// Session is one in-flight ranking of a single item by a single user.
type Session struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"`
	Item   model.Matchup `json:"item"`
	Step   Step          `json:"step"`

	Detected  model.Affinity  `json:"detected_affinity"`
	Affinity  model.Affinity  `json:"affinity,omitempty"`
	Sentiment model.Sentiment `json:"sentiment,omitempty"`

	// Snapshot of the user's list taken while loading.
	List []model.RankedItem `json:"list,omitempty"`

	Candidates  []model.RankedItem `json:"candidates,omitempty"`
	Search      *comparison.State  `json:"search,omitempty"`
	Comparisons int                `json:"comparisons"`

	Position int    `json:"position,omitempty"`
	Direct   bool   `json:"direct,omitempty"`
	Reason   string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Placement is the outcome of a finished session, ready to be confirmed.
type Placement struct {
	Position  int
	Sentiment model.Sentiment
	Affinity  model.Affinity
}

// New opens a session in the loading step. The viewer's affinity is detected
// immediately from the sides they favor.
func New(id, userID string, item model.Matchup, favored []string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Item:      item,
		Step:      StepLoading,
		Detected:  affinity.Detect(item, favored),
		CreatedAt: now,
	}
}

// Load records the user's current list. It fails with ErrAlreadyRanked when
// the item is already in it.
func (s *Session) Load(list []model.RankedItem) error {
	if err := s.expect(StepLoading); err != nil {
		return err
	}
	for _, it := range list {
		if it.ItemID == s.Item.ItemID {
			return fmt.Errorf("%w: user=%s item=%s at #%d", ErrAlreadyRanked, s.UserID, s.Item.ItemID, it.Position)
		}
	}
	s.List = append([]model.RankedItem(nil), list...)
	if s.Detected != model.AffinityNone {
		s.Step = StepFanConfirm
		return nil
	}
	s.Affinity = model.AffinityNone
	s.Step = StepSentiment
	return nil
}

// ConfirmAffinity answers the "watching as a fan?" prompt. A nil override
// keeps the detected value.
func (s *Session) ConfirmAffinity(override *model.Affinity) error {
	if err := s.expect(StepFanConfirm); err != nil {
		return err
	}
	if override != nil && !override.Valid() {
		return fmt.Errorf("%w: %q", affinity.ErrUnknownAffinity, *override)
	}
	s.Affinity = affinity.Resolve(s.Detected, override)
	s.Step = StepSentiment
	return nil
}

// ChooseSentiment records the bucket and either places the item directly or
// opens the comparison search over the bucket.
func (s *Session) ChooseSentiment(sent model.Sentiment) error {
	if err := s.expect(StepSentiment); err != nil {
		return err
	}
	if !sent.Valid() {
		return fmt.Errorf("%w: %d", sentiment.ErrUnknownSentiment, sent)
	}
	s.Sentiment = sent
	plan := placement.Decide(s.List, sent)
	if plan.Direct {
		s.Direct = true
		s.Reason = plan.Reason
		s.Position = plan.Position
		s.Step = StepPlacement
		return nil
	}
	st := comparison.Init(1, len(plan.Candidates))
	s.Candidates = plan.Candidates
	s.Search = &st
	s.Step = StepComparison
	return nil
}

// Prompt returns the existing item the new one is compared against next.
func (s *Session) Prompt() (model.RankedItem, comparison.State, error) {
	if err := s.expect(StepComparison); err != nil {
		return model.RankedItem{}, comparison.State{}, err
	}
	st := *s.Search
	return s.Candidates[st.MidIndex-1], st, nil
}

// Compare applies one answer. When the search narrows to a single slot the
// filtered position is mapped back onto the full list.
func (s *Session) Compare(r model.ComparisonResult) error {
	if err := s.expect(StepComparison); err != nil {
		return err
	}
	out, err := comparison.Advance(*s.Search, r)
	if err != nil {
		return err
	}
	s.Comparisons++
	if !out.Done {
		s.Search = &out.Next
		return nil
	}
	pos, err := placement.MapToFullListPosition(placement.Positions(s.Candidates), out.Position)
	if err != nil {
		return err
	}
	s.Search = nil
	s.Position = pos
	s.Step = StepPlacement
	return nil
}

// Placement returns the final position once the session reached placement.
func (s *Session) Placement() (Placement, error) {
	if err := s.expect(StepPlacement); err != nil {
		return Placement{}, err
	}
	return Placement{Position: s.Position, Sentiment: s.Sentiment, Affinity: s.Affinity}, nil
}

// Total is the list size the item will join; the placed item makes it Total.
func (s *Session) Total() int { return len(s.List) + 1 }

func (s *Session) expect(step Step) error {
	if s.Step != step {
		return fmt.Errorf("%w: at %s, want %s", ErrInvalidTransition, s.Step, step)
	}
	return nil
}
