// Package types contains the read shapes shared by the service and the HTTP layer.
package types

import (
	"fmt"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/scoring"
	"github.com/okian/courtside/internal/domain/wizard"
)

// Entry is one ranked item as shown to its owner.
type Entry struct {
	ItemID    string    `json:"item_id"`
	Rank      int       `json:"rank"`
	Total     int       `json:"total"`
	Label     string    `json:"label"`
	Sentiment string    `json:"sentiment"`
	Affinity  string    `json:"affinity"`
	RankedAt  time.Time `json:"ranked_at"`

	Score        *float64 `json:"score,omitempty"`
	ScoreDisplay string   `json:"score_display,omitempty"`
	Remaining    int      `json:"remaining,omitempty"`
}

// NewEntry builds the view of it inside a list of total items.
func NewEntry(it model.RankedItem, total int, gate *scoring.Gate) Entry {
	e := Entry{
		ItemID:    it.ItemID,
		Rank:      it.Position,
		Total:     total,
		Label:     fmt.Sprintf("#%d of %d", it.Position, total),
		Sentiment: it.Sentiment.String(),
		Affinity:  string(it.Affinity),
		RankedAt:  it.RankedAt,
	}
	d := gate.Present(it.Position, total)
	if d.Shown {
		e.Score = d.Score
		e.ScoreDisplay = d.Formatted
	} else {
		e.Remaining = d.Remaining
	}
	return e
}

// Ranking is a user's full ordered list.
type Ranking struct {
	UserID      string  `json:"user_id"`
	Total       int     `json:"total"`
	ScoresShown bool    `json:"scores_shown"`
	Remaining   int     `json:"remaining,omitempty"`
	Items       []Entry `json:"items"`
}

// NewRanking builds the view of a list ordered by position.
func NewRanking(userID string, list []model.RankedItem, gate *scoring.Gate) Ranking {
	total := len(list)
	r := Ranking{UserID: userID, Total: total, Items: make([]Entry, 0, total)}
	d := gate.Present(1, total)
	r.ScoresShown = d.Shown
	r.Remaining = d.Remaining
	for _, it := range list {
		r.Items = append(r.Items, NewEntry(it, total, gate))
	}
	return r
}

// Prompt is the next head-to-head question of a session.
type Prompt struct {
	Against        Entry `json:"against"`
	Step           int   `json:"step"`
	EstimatedTotal int   `json:"estimated_total"`
}

// Session is the client view of an in-flight ranking.
type Session struct {
	ID               string           `json:"session_id"`
	UserID           string           `json:"user_id"`
	Item             model.Matchup    `json:"item"`
	Step             string           `json:"step"`
	DetectedAffinity string           `json:"detected_affinity"`
	Affinity         string           `json:"affinity,omitempty"`
	Sentiment        string           `json:"sentiment,omitempty"`
	Comparisons      int              `json:"comparisons"`
	Prompt           *Prompt          `json:"prompt,omitempty"`
	Position         int              `json:"position,omitempty"`
	Total            int              `json:"total,omitempty"`
	Direct           bool             `json:"direct,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	Preview          *scoring.Display `json:"preview,omitempty"`
}

// NewSession builds the client view of s.
func NewSession(s *wizard.Session, gate *scoring.Gate) Session {
	v := Session{
		ID:               s.ID,
		UserID:           s.UserID,
		Item:             s.Item,
		Step:             string(s.Step),
		DetectedAffinity: string(s.Detected),
		Affinity:         string(s.Affinity),
		Comparisons:      s.Comparisons,
	}
	if s.Sentiment.Valid() {
		v.Sentiment = s.Sentiment.String()
	}
	switch s.Step {
	case wizard.StepComparison:
		against, st, err := s.Prompt()
		if err == nil {
			v.Prompt = &Prompt{
				Against:        NewEntry(against, len(s.List), gate),
				Step:           st.Step,
				EstimatedTotal: st.EstimatedTotal,
			}
		}
	case wizard.StepPlacement:
		v.Position = s.Position
		v.Total = s.Total()
		v.Direct = s.Direct
		v.Reason = s.Reason
		preview := gate.Present(s.Position, s.Total())
		v.Preview = &preview
	}
	return v
}
