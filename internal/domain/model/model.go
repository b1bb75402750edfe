// Package model contains domain models passed between layers.
package model

import "time"

// Sentiment is the coarse preference bucket of a ranked item.
// Lower values are more preferred.
type Sentiment int

// Buckets, most to least preferred.
const (
	SentimentLoved Sentiment = iota + 1
	SentimentGood
	SentimentOkay
	SentimentBad
)

// Sentiments lists every bucket from most to least preferred.
var Sentiments = []Sentiment{SentimentLoved, SentimentGood, SentimentOkay, SentimentBad}

// String returns the wire name of the bucket.
func (s Sentiment) String() string {
	switch s {
	case SentimentLoved:
		return "loved"
	case SentimentGood:
		return "good"
	case SentimentOkay:
		return "okay"
	case SentimentBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four buckets.
func (s Sentiment) Valid() bool {
	return s >= SentimentLoved && s <= SentimentBad
}

// PreferredOver reports whether s is strictly more preferred than other.
func (s Sentiment) PreferredOver(other Sentiment) bool {
	return s < other
}

// Affinity is the viewer's relationship to the two sides of an item.
type Affinity string

// Affinity values.
const (
	AffinityNone  Affinity = "none"
	AffinitySideA Affinity = "side_a"
	AffinitySideB Affinity = "side_b"
	AffinityBoth  Affinity = "both"
)

// Valid reports whether a is a known affinity.
func (a Affinity) Valid() bool {
	switch a {
	case AffinityNone, AffinitySideA, AffinitySideB, AffinityBoth:
		return true
	}
	return false
}

// Matchup is a two-sided item: a game between a home side (A) and an away side (B).
type Matchup struct {
	ItemID string `json:"item_id"`
	SideA  string `json:"side_a"`
	SideB  string `json:"side_b"`
}

// RankedItem is one row of a user's ordered list.
type RankedItem struct {
	UserID    string
	ItemID    string
	Position  int // 1-indexed, dense within UserID
	Sentiment Sentiment
	Affinity  Affinity
	RankedAt  time.Time
}

// Meta is the non-ordering metadata stored alongside a position.
type Meta struct {
	Sentiment Sentiment
	Affinity  Affinity
}

// ComparisonResult is the user's answer to one head-to-head prompt.
type ComparisonResult string

// Comparison answers.
const (
	NewIsBetter      ComparisonResult = "new_is_better"
	ExistingIsBetter ComparisonResult = "existing_is_better"
)

// Valid reports whether r is a known answer.
func (r ComparisonResult) Valid() bool {
	return r == NewIsBetter || r == ExistingIsBetter
}
