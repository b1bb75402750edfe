package repository

import (
	"fmt"

	"github.com/okian/courtside/internal/domain/model"
)

// VerifyPermutation checks that items, ordered as List returns them, occupy
// exactly positions 1..N and that no item appears twice.
func VerifyPermutation(items []model.RankedItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.Position != i+1 {
			return fmt.Errorf("position %d at index %d (item %s), want %d", it.Position, i, it.ItemID, i+1)
		}
		if _, dup := seen[it.ItemID]; dup {
			return fmt.Errorf("item %s ranked twice", it.ItemID)
		}
		seen[it.ItemID] = struct{}{}
	}
	return nil
}
