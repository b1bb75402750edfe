package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/sentiment"
	"github.com/okian/courtside/pkg/logger"
)

// teams is the pool matchups are drawn from.
var teams = []string{
	"ATL", "BOS", "BKN", "CHA", "CHI", "CLE", "DAL", "DEN", "DET", "GSW",
	"HOU", "IND", "LAC", "LAL", "MEM", "MIA", "MIL", "MIN", "NOP", "NYK",
	"OKC", "ORL", "PHI", "PHX", "POR", "SAC", "SAS", "TOR", "UTA", "WAS",
}

const maxFavored = 2

// generateScenarios builds one scenario per user over a shared slate of
// games. Each user gets a private strict order, a sentiment per game and a
// shuffled insertion order.
func generateScenarios(ctx context.Context, config *Config) []Scenario {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Get().Info(ctx, "generating scenarios",
		logger.Int("users", config.Users),
		logger.Int("games", config.Games),
		logger.Any("seed", seed))

	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	slate := generateSlate(rng, config.Games)

	out := make([]Scenario, config.Users)
	for u := range out {
		hidden := rng.Perm(len(slate))
		games := make([]Game, len(slate))
		for i, m := range slate {
			games[i] = Game{
				Matchup:   m,
				Sentiment: model.Sentiments[rng.IntN(len(model.Sentiments))].String(),
				Hidden:    hidden[i],
			}
		}
		rng.Shuffle(len(games), func(i, j int) { games[i], games[j] = games[j], games[i] })

		favored := make([]string, 0, maxFavored)
		for _, i := range rng.Perm(len(teams))[:rng.IntN(maxFavored+1)] {
			favored = append(favored, teams[i])
		}
		out[u] = Scenario{
			UserID:  fmt.Sprintf("%s%04d", config.UserPrefix, u+1),
			Favored: favored,
			Games:   games,
		}
	}
	return out
}

func generateSlate(rng *rand.Rand, n int) []model.Matchup {
	slate := make([]model.Matchup, n)
	for i := range slate {
		pair := rng.Perm(len(teams))[:2]
		slate[i] = model.Matchup{
			ItemID: fmt.Sprintf("game-%04d", i+1),
			SideA:  teams[pair[0]],
			SideB:  teams[pair[1]],
		}
	}
	return slate
}

// expectedOrder is the list a consistent user must end up with: buckets
// most preferred first, hidden order within each bucket.
func expectedOrder(sc Scenario) ([]string, error) {
	type key struct {
		id     string
		bucket model.Sentiment
		hidden int
	}
	keys := make([]key, 0, len(sc.Games))
	for _, g := range sc.Games {
		b, err := sentiment.Classify(g.Sentiment)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key{id: g.ItemID, bucket: b, hidden: g.Hidden})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bucket != keys[j].bucket {
			return keys[i].bucket.PreferredOver(keys[j].bucket)
		}
		return keys[i].hidden < keys[j].hidden
	})
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.id
	}
	return ids, nil
}
