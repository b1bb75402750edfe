package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/okian/courtside/internal/domain/types"
)

// ErrVerification marks a list that breaks the dense order or disagrees
// with the user's hidden preferences.
var ErrVerification = errors.New("ranking verification failed")

// verifyResults fetches every user's list and checks it against the
// scenario. Users with failed placements are checked against what they
// actually ranked.
func verifyResults(ctx context.Context, config *Config, client *HTTPClient, scenarios []Scenario, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	var errs []error
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var got types.Ranking
		path := "/users/" + url.PathEscape(sc.UserID) + "/rankings"
		if err := client.call(ctx, http.MethodGet, path, sc.UserID, nil, nil, &got, http.StatusOK); err != nil {
			return fmt.Errorf("list %s: %w", sc.UserID, err)
		}
		if err := verifyRanking(sc, got); err != nil {
			stats.Violations++
			errs = append(errs, err)
			if config.Verbose {
				log.Printf("❌ %v", err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Println("✅ Result verification completed")
	return nil
}

// verifyRanking checks ranks are exactly 1..N and the items appear in the
// order a consistent user must produce.
func verifyRanking(sc Scenario, got types.Ranking) error {
	if got.Total != len(got.Items) {
		return fmt.Errorf("%w: user=%s total=%d items=%d", ErrVerification, sc.UserID, got.Total, len(got.Items))
	}
	present := make(map[string]bool, len(got.Items))
	for i, it := range got.Items {
		if it.Rank != i+1 {
			return fmt.Errorf("%w: user=%s item=%s at index %d has rank %d", ErrVerification, sc.UserID, it.ItemID, i, it.Rank)
		}
		if present[it.ItemID] {
			return fmt.Errorf("%w: user=%s item=%s listed twice", ErrVerification, sc.UserID, it.ItemID)
		}
		present[it.ItemID] = true
	}

	want, err := expectedOrder(sc)
	if err != nil {
		return fmt.Errorf("%w: user=%s: %w", ErrVerification, sc.UserID, err)
	}
	i := 0
	for _, id := range want {
		if !present[id] {
			continue
		}
		if i >= len(got.Items) || got.Items[i].ItemID != id {
			return fmt.Errorf("%w: user=%s expected %s at #%d", ErrVerification, sc.UserID, id, i+1)
		}
		i++
	}
	if i != len(got.Items) {
		return fmt.Errorf("%w: user=%s has %d items outside the scenario", ErrVerification, sc.UserID, len(got.Items)-i)
	}
	return nil
}
