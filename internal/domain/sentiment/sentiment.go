// Package sentiment maps a user's qualitative judgment onto a preference bucket.
package sentiment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/courtside/internal/domain/model"
)

// ErrUnknownSentiment is returned for input outside the four fixed options.
var ErrUnknownSentiment = errors.New("unknown sentiment")

// Option is one selectable judgment as presented to the user.
type Option struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Bucket int    `json:"bucket"`
}

var labels = map[model.Sentiment]string{
	model.SentimentLoved: "I loved it",
	model.SentimentGood:  "It was good",
	model.SentimentOkay:  "It was okay",
	model.SentimentBad:   "I didn't like it",
}

// Options returns the four judgments, most preferred first.
func Options() []Option {
	out := make([]Option, 0, len(model.Sentiments))
	for _, s := range model.Sentiments {
		out = append(out, Option{Value: s.String(), Label: labels[s], Bucket: int(s)})
	}
	return out
}

// Classify returns the bucket for a selected judgment. Matching is exact
// apart from case and surrounding whitespace.
func Classify(input string) (model.Sentiment, error) {
	v := strings.ToLower(strings.TrimSpace(input))
	for _, s := range model.Sentiments {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSentiment, input)
}
