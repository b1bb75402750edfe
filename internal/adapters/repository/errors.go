package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for Rank Store errors. The first three are detected before
// any mutation and leave the list untouched.
var (
	ErrAlreadyRanked      = errors.New("item already ranked")
	ErrNotRanked          = errors.New("item not ranked")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func alreadyRanked(userID, itemID string) error {
	return fmt.Errorf("%w: user=%s item=%s", ErrAlreadyRanked, userID, itemID)
}

func notRanked(userID, itemID string) error {
	return fmt.Errorf("%w: user=%s item=%s", ErrNotRanked, userID, itemID)
}

func invalidPosition(position, n int) error {
	return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPosition, position, n+1)
}

// unavailable wraps a backend failure so callers can retry it.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
