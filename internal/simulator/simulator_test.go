package simulator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/courtside/internal/adapters/http/api"
	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(opts ...api.ServerOption) *httptest.Server {
	ctx := context.Background()
	svc := service.New(service.WithMinRankedForScore(3))
	So(svc.Start(ctx), ShouldBeNil)
	srv := httptest.NewServer(api.NewServer(svc, opts...).Router(ctx))
	Reset(func() {
		srv.Close()
		svc.Stop(ctx)
	})
	return srv
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		Users:      4,
		Games:      12,
		Workers:    3,
		Timeout:    5 * time.Second,
		Seed:       7,
		UserPrefix: "sim-",
	}
}

func matchup(id string) model.Matchup {
	return model.Matchup{ItemID: id, SideA: "BOS", SideB: "NYK"}
}

func entries(ids ...string) types.Ranking {
	r := types.Ranking{Total: len(ids)}
	for i, id := range ids {
		r.Items = append(r.Items, types.Entry{ItemID: id, Rank: i + 1, Total: len(ids)})
	}
	return r
}

func TestScenarioGeneration(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := testConfig("")
		ctx := context.Background()

		Convey("Then the same seed yields the same scenarios", func() {
			So(generateScenarios(ctx, cfg), ShouldResemble, generateScenarios(ctx, cfg))
		})

		Convey("Then every user ranks the whole slate with a strict hidden order", func() {
			scs := generateScenarios(ctx, cfg)
			So(scs, ShouldHaveLength, cfg.Users)
			So(scs[0].UserID, ShouldEqual, "sim-0001")
			for _, sc := range scs {
				So(sc.Games, ShouldHaveLength, cfg.Games)
				So(len(sc.Favored), ShouldBeLessThanOrEqualTo, maxFavored)
				seen := make(map[int]bool)
				for _, g := range sc.Games {
					So(g.SideA, ShouldNotEqual, g.SideB)
					So(g.Hidden, ShouldBeBetweenOrEqual, 0, cfg.Games-1)
					seen[g.Hidden] = true
				}
				So(seen, ShouldHaveLength, cfg.Games)
			}
		})
	})
}

func TestExpectedOrder(t *testing.T) {
	Convey("Given games spread across buckets", t, func() {
		sc := Scenario{UserID: "u", Games: []Game{
			{Matchup: matchup("a"), Sentiment: "okay", Hidden: 0},
			{Matchup: matchup("b"), Sentiment: "loved", Hidden: 3},
			{Matchup: matchup("c"), Sentiment: "loved", Hidden: 1},
			{Matchup: matchup("d"), Sentiment: "bad", Hidden: 2},
		}}

		Convey("Then buckets come first and hidden order breaks ties", func() {
			got, err := expectedOrder(sc)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []string{"c", "b", "a", "d"})
		})

		Convey("Then a list matching it verifies", func() {
			So(verifyRanking(sc, entries("c", "b", "a", "d")), ShouldBeNil)
		})

		Convey("Then a list missing failed items still verifies", func() {
			So(verifyRanking(sc, entries("c", "a")), ShouldBeNil)
		})

		Convey("Then a swapped pair is a violation", func() {
			So(errors.Is(verifyRanking(sc, entries("b", "c", "a", "d")), ErrVerification), ShouldBeTrue)
		})

		Convey("Then a gap in ranks is a violation", func() {
			r := entries("c", "b", "a", "d")
			r.Items[2].Rank = 4
			So(errors.Is(verifyRanking(sc, r), ErrVerification), ShouldBeTrue)
		})

		Convey("Then an unknown item is a violation", func() {
			So(errors.Is(verifyRanking(sc, entries("c", "zz")), ErrVerification), ShouldBeTrue)
		})

		Convey("Then a mismatched total is a violation", func() {
			r := entries("c", "b")
			r.Total = 3
			So(errors.Is(verifyRanking(sc, r), ErrVerification), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()

		Convey("When users rank consistently", func() {
			srv := startServer()
			cfg := testConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "scenarios.json")

			stats, err := Run(ctx, cfg)

			Convey("Then every list matches its hidden order", func() {
				So(err, ShouldBeNil)
				So(stats.UsersSimulated, ShouldEqual, cfg.Users)
				So(stats.ItemsRanked, ShouldEqual, cfg.Users*cfg.Games)
				So(stats.ItemsFailed, ShouldEqual, 0)
				So(stats.Violations, ShouldEqual, 0)
				So(stats.Comparisons, ShouldBeGreaterThan, 0)
				So(stats.DirectPlacements, ShouldBeGreaterThan, 0)
			})

			Convey("Then the scenarios are written out", func() {
				_, statErr := os.Stat(cfg.OutputFile)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the server requires tokens", func() {
			srv := startServer(api.WithJWTSecret("s3cret"))

			Convey("Then signed requests succeed", func() {
				cfg := testConfig(srv.URL)
				cfg.JWTSecret = "s3cret"
				stats, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(stats.ItemsRanked, ShouldEqual, cfg.Users*cfg.Games)
			})

			Convey("Then a wrong secret fails the run", func() {
				cfg := testConfig(srv.URL)
				cfg.JWTSecret = "other"
				stats, err := Run(ctx, cfg)
				So(err, ShouldNotBeNil)
				So(stats.ItemsRanked, ShouldEqual, 0)
				So(stats.ItemsFailed, ShouldEqual, cfg.Users*cfg.Games)
			})
		})

		Convey("When the service is unhealthy", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			Reset(srv.Close)

			Convey("Then the run stops before ranking", func() {
				stats, err := Run(ctx, testConfig(srv.URL))
				So(err, ShouldNotBeNil)
				So(stats.ItemsRanked, ShouldEqual, 0)
			})
		})
	})
}

func TestClientRetries(t *testing.T) {
	Convey("Given a server that is briefly overloaded", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"code":"unavailable","message":"busy"}`))
				return
			}
			_, _ = w.Write([]byte(`{"total":0,"items":[]}`))
		}))
		Reset(srv.Close)
		c := newHTTPClient(srv.URL, time.Second, "")

		Convey("Then 503 answers are retried", func() {
			var r types.Ranking
			So(c.call(context.Background(), http.MethodGet, "/x", "u", nil, nil, &r, http.StatusOK), ShouldBeNil)
			So(c.Retries(), ShouldEqual, 2)
		})
	})

	Convey("Given a server that rejects the request", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"already_ranked","message":"dup"}`))
		}))
		Reset(srv.Close)
		c := newHTTPClient(srv.URL, time.Second, "")

		Convey("Then the error is returned without retrying", func() {
			err := c.call(context.Background(), http.MethodPost, "/x", "u", nil, map[string]string{}, nil, http.StatusCreated)
			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Status, ShouldEqual, http.StatusConflict)
			So(se.Code, ShouldEqual, "already_ranked")
			So(int(calls.Load()), ShouldEqual, 1)
		})
	})
}
