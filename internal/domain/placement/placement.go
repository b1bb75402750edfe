// Package placement translates between a user's full ordered list and the
// bucket-filtered sub-list the comparison search runs over.
package placement

import (
	"errors"
	"sort"

	"github.com/okian/courtside/internal/domain/model"
)

// ErrNoCandidates is returned when mapping against an empty candidate list.
var ErrNoCandidates = errors.New("no candidates to map against")

// Reasons for a placement that needs no comparison.
const (
	ReasonEmptyList   = "empty_list"
	ReasonEmptyBucket = "empty_bucket"
)

// Plan describes how a new item of a given sentiment gets its position.
type Plan struct {
	// Direct is true when no comparison is needed; Position is then final.
	Direct   bool
	Position int
	Reason   string
	// Candidates holds the same-bucket items, best first, when Direct is false.
	Candidates []model.RankedItem
}

// Decide inspects the user's list and returns the placement plan for a new
// item classified as s.
func Decide(list []model.RankedItem, s model.Sentiment) Plan {
	if len(list) == 0 {
		return Plan{Direct: true, Position: 1, Reason: ReasonEmptyList}
	}
	candidates := Candidates(list, s)
	if len(candidates) == 0 {
		return Plan{Direct: true, Position: AutoPlace(list, s), Reason: ReasonEmptyBucket}
	}
	return Plan{Candidates: candidates}
}

// Candidates returns the items sharing sentiment s ordered by ascending position.
func Candidates(list []model.RankedItem, s model.Sentiment) []model.RankedItem {
	out := make([]model.RankedItem, 0, len(list))
	for _, it := range list {
		if it.Sentiment == s {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Positions extracts the absolute positions of items.
func Positions(items []model.RankedItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Position
	}
	return out
}

// MapToFullListPosition converts a 1-indexed position within the filtered
// candidate list into an absolute position in the full list. positions are the
// candidates' absolute positions in ascending order.
func MapToFullListPosition(positions []int, filteredPos int) (int, error) {
	n := len(positions)
	switch {
	case n == 0:
		return 0, ErrNoCandidates
	case filteredPos <= 1:
		return positions[0], nil
	case filteredPos > n:
		return positions[n-1] + 1, nil
	default:
		return positions[filteredPos-1], nil
	}
}

// AutoPlace picks the position of a new item whose bucket is empty: right
// after the last item of any strictly more preferred bucket, or 1 when none
// exists.
func AutoPlace(list []model.RankedItem, s model.Sentiment) int {
	maxPos := 0
	for _, it := range list {
		if it.Sentiment.PreferredOver(s) && it.Position > maxPos {
			maxPos = it.Position
		}
	}
	return maxPos + 1
}
