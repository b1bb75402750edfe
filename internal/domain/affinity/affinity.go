// Package affinity detects whether a viewer supports either side of a matchup.
//
// Affinity is display metadata. It never feeds position or score computation.
package affinity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/courtside/internal/domain/model"
)

// ErrUnknownAffinity is returned when an override is not a known value.
var ErrUnknownAffinity = errors.New("unknown affinity")

// Detect returns the viewer's relationship to the two sides of m given the
// sides they declared as favorites. Side identifiers compare case-insensitively.
func Detect(m model.Matchup, favored []string) model.Affinity {
	a := normalize(m.SideA)
	b := normalize(m.SideB)

	var likesA, likesB bool
	for _, f := range favored {
		switch n := normalize(f); {
		case n == "":
		case n == a:
			likesA = true
		case n == b:
			likesB = true
		}
	}

	switch {
	case likesA && likesB:
		return model.AffinityBoth
	case likesA:
		return model.AffinitySideA
	case likesB:
		return model.AffinitySideB
	default:
		return model.AffinityNone
	}
}

// Parse validates a user supplied affinity value.
func Parse(s string) (model.Affinity, error) {
	a := model.Affinity(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAffinity, s)
	}
	return a, nil
}

// Resolve returns the override when the user gave one, otherwise the detected value.
func Resolve(detected model.Affinity, override *model.Affinity) model.Affinity {
	if override != nil {
		return *override
	}
	return detected
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
