// Package repository is the Rank Store: the only component allowed to move
// a ranked item's position. Every implementation keeps each user's positions
// a dense 1..N permutation after every mutation.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

// Store provides read/write access to users' ordered lists.
type Store interface {
	// InsertAt shifts every row at or after position down by one and writes
	// itemID at position. position must be within 1..N+1.
	InsertAt(ctx context.Context, userID, itemID string, position int, meta model.Meta) (model.RankedItem, error)

	// RemoveAt deletes itemID and closes the gap it leaves.
	// Returns the removed row.
	RemoveAt(ctx context.Context, userID, itemID string) (model.RankedItem, error)

	// SetMeta updates sentiment and affinity without touching positions.
	SetMeta(ctx context.Context, userID, itemID string, meta model.Meta) (model.RankedItem, error)

	// List returns the user's rows ordered by ascending position.
	List(ctx context.Context, userID string) ([]model.RankedItem, error)

	// Get returns one row. Returns ErrNotRanked if the item is not ranked.
	Get(ctx context.Context, userID, itemID string) (model.RankedItem, error)

	// Count returns N for the user without materializing the list.
	Count(ctx context.Context, userID string) (int, error)

	// Users returns every user with at least one ranked item.
	Users(ctx context.Context) ([]string, error)

	// Totals returns the number of users and ranked items across all users.
	Totals(ctx context.Context) (users, items int, err error)

	Ping(ctx context.Context) error
	Close() error
}

// Operation names used in metrics and error messages.
const (
	opInsertAt = "insert_at"
	opRemoveAt = "remove_at"
	opSetMeta  = "set_meta"
	opList     = "list"
	opGet      = "get"
	opCount    = "count"
	opUsers    = "users"
	opTotals   = "totals"
)

// observe records latency and, on failure, the error kind of one operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op, ErrorKind(err))
	}
}

// ErrorKind classifies err into one of the store's error kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyRanked):
		return "already_ranked"
	case errors.Is(err, ErrNotRanked):
		return "not_ranked"
	case errors.Is(err, ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, ErrStorageUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
