package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/internal/domain/wizard"
)

// ErrWizardStuck means a session never reached placement.
var ErrWizardStuck = errors.New("wizard did not reach placement")

// gameResult is the outcome of ranking one game.
type gameResult struct {
	entry       types.Entry
	comparisons int
	direct      bool
}

// rankUsers drives every scenario through the wizard. Users run
// concurrently; one user's games run in order.
func rankUsers(ctx context.Context, config *Config, client *HTTPClient, scenarios []Scenario, stats *Stats) {
	log.Printf("🏀 Ranking %d games for %d users with %d workers...", config.Games, len(scenarios), config.Workers)

	var (
		ranked      atomic.Int64
		failed      atomic.Int64
		comparisons atomic.Int64
		direct      atomic.Int64
		users       atomic.Int64
		lastReport  atomic.Int64
	)
	total := int64(len(scenarios) * config.Games)

	userChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range userChan {
				if ctx.Err() != nil {
					return
				}
				sc := scenarios[index]
				for _, g := range sc.Games {
					res, err := rankGame(ctx, client, sc, g)
					if err != nil {
						failed.Add(1)
						if config.Verbose {
							log.Printf("⚠️  Failed to rank %s for %s: %v", g.ItemID, sc.UserID, err)
						}
						continue
					}
					ranked.Add(1)
					comparisons.Add(int64(res.comparisons))
					if res.direct {
						direct.Add(1)
					}

					now := time.Now().UnixNano()
					last := lastReport.Load()
					if now-last >= int64(ProgressInterval) && lastReport.CompareAndSwap(last, now) {
						log.Printf("📊 Progress: %d/%d ranked (failed: %d, comparisons: %d)",
							ranked.Load()+failed.Load(), total, failed.Load(), comparisons.Load())
					}
				}
				users.Add(1)
			}
		}()
	}

	go func() {
		defer close(userChan)
		for i := range scenarios {
			select {
			case <-ctx.Done():
				return
			case userChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.UsersSimulated = int(users.Load())
	stats.ItemsRanked = int(ranked.Load())
	stats.ItemsFailed = int(failed.Load())
	stats.Comparisons = int(comparisons.Load())
	stats.DirectPlacements = int(direct.Load())

	log.Printf(`✅ Ranking completed:
   Ranked: %d
   Failed: %d
   Comparisons: %d
`, stats.ItemsRanked, stats.ItemsFailed, stats.Comparisons)
}

// rankGame places one game, answering every prompt from the user's
// hidden order.
func rankGame(ctx context.Context, client *HTTPClient, sc Scenario, g Game) (res gameResult, err error) {
	hidden := make(map[string]int, len(sc.Games))
	for _, other := range sc.Games {
		hidden[other.ItemID] = other.Hidden
	}
	base := "/users/" + url.PathEscape(sc.UserID) + "/sessions"

	var s types.Session
	begin := map[string]any{
		"item_id": g.ItemID,
		"side_a":  g.SideA,
		"side_b":  g.SideB,
		"favored": sc.Favored,
	}
	if err := client.call(ctx, http.MethodPost, base, sc.UserID, nil, begin, &s, http.StatusCreated); err != nil {
		return gameResult{}, fmt.Errorf("begin: %w", err)
	}
	path := base + "/" + url.PathEscape(s.ID)
	defer func() {
		if err != nil {
			_ = client.call(context.WithoutCancel(ctx), http.MethodDelete, path, sc.UserID, nil, nil, nil, http.StatusNoContent)
		}
	}()

	for step := 0; step < maxWizardSteps; step++ {
		switch wizard.Step(s.Step) {
		case wizard.StepFanConfirm:
			err = client.call(ctx, http.MethodPost, path+"/affinity", sc.UserID, nil, map[string]any{}, &s, http.StatusOK)
		case wizard.StepSentiment:
			err = client.call(ctx, http.MethodPost, path+"/sentiment", sc.UserID, nil,
				map[string]string{"sentiment": g.Sentiment}, &s, http.StatusOK)
		case wizard.StepComparison:
			if s.Prompt == nil {
				return gameResult{}, fmt.Errorf("%w: comparison step without prompt", ErrWizardStuck)
			}
			answer := model.ExistingIsBetter
			if g.Hidden < hidden[s.Prompt.Against.ItemID] {
				answer = model.NewIsBetter
			}
			err = client.call(ctx, http.MethodPost, path+"/comparisons", sc.UserID, nil,
				map[string]string{"result": string(answer)}, &s, http.StatusOK)
		case wizard.StepPlacement:
			res = gameResult{comparisons: s.Comparisons, direct: s.Direct}
			header := http.Header{}
			header.Set("Idempotency-Key", uuid.NewString())
			if err := client.call(ctx, http.MethodPost, path+"/confirm", sc.UserID, header, nil, &res.entry, http.StatusCreated); err != nil {
				return gameResult{}, fmt.Errorf("confirm: %w", err)
			}
			return res, nil
		default:
			return gameResult{}, fmt.Errorf("%w: unexpected step %q", ErrWizardStuck, s.Step)
		}
		if err != nil {
			return gameResult{}, fmt.Errorf("%s: %w", s.Step, err)
		}
	}
	return gameResult{}, fmt.Errorf("%w: after %d steps", ErrWizardStuck, maxWizardSteps)
}
