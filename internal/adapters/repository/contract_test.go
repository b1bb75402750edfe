package repository_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
)

// storeFactory returns a fresh store; shared backends rely on unique user IDs.
type storeFactory func(t *testing.T) repository.Store

var loved = model.Meta{Sentiment: model.SentimentLoved, Affinity: model.AffinityNone}

func itemIDs(items []model.RankedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}

func mustList(ctx context.Context, s repository.Store, user string) []model.RankedItem {
	items, err := s.List(ctx, user)
	So(err, ShouldBeNil)
	So(repository.VerifyPermutation(items), ShouldBeNil)
	return items
}

// runStoreContract exercises the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, name string, newStore storeFactory) {
	ctx := context.Background()

	Convey(fmt.Sprintf("Given an empty %s", name), t, func() {
		s := newStore(t)
		Reset(func() { _ = s.Close() })
		user := "u-" + uuid.NewString()

		So(s.Ping(ctx), ShouldBeNil)
		n, err := s.Count(ctx, user)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
		So(mustList(ctx, s, user), ShouldBeEmpty)

		Convey("When inserting outside 1..N+1", func() {
			_, err0 := s.InsertAt(ctx, user, "a", 0, loved)
			_, err2 := s.InsertAt(ctx, user, "a", 2, loved)

			Convey("Then it fails with InvalidPosition and nothing changes", func() {
				So(errors.Is(err0, repository.ErrInvalidPosition), ShouldBeTrue)
				So(errors.Is(err2, repository.ErrInvalidPosition), ShouldBeTrue)
				So(mustList(ctx, s, user), ShouldBeEmpty)
			})
		})

		Convey("When inserting at the front, the back and the middle", func() {
			first, err := s.InsertAt(ctx, user, "a", 1, loved)
			So(err, ShouldBeNil)
			So(first.Position, ShouldEqual, 1)
			_, err = s.InsertAt(ctx, user, "b", 2, loved)
			So(err, ShouldBeNil)
			_, err = s.InsertAt(ctx, user, "c", 1, loved)
			So(err, ShouldBeNil)
			mid, err := s.InsertAt(ctx, user, "d", 3, model.Meta{Sentiment: model.SentimentOkay, Affinity: model.AffinitySideB})
			So(err, ShouldBeNil)

			Convey("Then existing rows shift down", func() {
				So(mid.Position, ShouldEqual, 3)
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "a", "d", "b"})
				n, err := s.Count(ctx, user)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 4)
			})

			Convey("Then Get reports the current position and metadata", func() {
				it, err := s.Get(ctx, user, "b")
				So(err, ShouldBeNil)
				So(it.Position, ShouldEqual, 4)
				it, err = s.Get(ctx, user, "d")
				So(err, ShouldBeNil)
				So(it.Sentiment, ShouldEqual, model.SentimentOkay)
				So(it.Affinity, ShouldEqual, model.AffinitySideB)
				So(it.RankedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then inserting the same item again fails with AlreadyRanked", func() {
				_, err := s.InsertAt(ctx, user, "a", 1, loved)
				So(errors.Is(err, repository.ErrAlreadyRanked), ShouldBeTrue)
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "a", "d", "b"})
			})

			Convey("Then removing the middle closes the gap", func() {
				removed, err := s.RemoveAt(ctx, user, "a")
				So(err, ShouldBeNil)
				So(removed.Position, ShouldEqual, 2)
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "d", "b"})
			})

			Convey("Then removing an unranked item fails with NotRanked", func() {
				_, err := s.RemoveAt(ctx, user, "zzz")
				So(errors.Is(err, repository.ErrNotRanked), ShouldBeTrue)
				_, err = s.Get(ctx, user, "zzz")
				So(errors.Is(err, repository.ErrNotRanked), ShouldBeTrue)
			})

			Convey("Then a metadata write leaves positions alone", func() {
				it, err := s.SetMeta(ctx, user, "a", model.Meta{Sentiment: model.SentimentBad, Affinity: model.AffinityBoth})
				So(err, ShouldBeNil)
				So(it.Position, ShouldEqual, 2)
				So(it.Sentiment, ShouldEqual, model.SentimentBad)
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "a", "d", "b"})

				_, err = s.SetMeta(ctx, user, "zzz", loved)
				So(errors.Is(err, repository.ErrNotRanked), ShouldBeTrue)
			})

			Convey("Then remove followed by insert at the same slot restores the order", func() {
				removed, err := s.RemoveAt(ctx, user, "d")
				So(err, ShouldBeNil)
				_, err = s.InsertAt(ctx, user, "d", removed.Position, model.Meta{Sentiment: removed.Sentiment, Affinity: removed.Affinity})
				So(err, ShouldBeNil)
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "a", "d", "b"})
			})

			Convey("Then other users are untouched", func() {
				other := "u-" + uuid.NewString()
				_, err := s.InsertAt(ctx, other, "a", 1, loved)
				So(err, ShouldBeNil)
				So(itemIDs(mustList(ctx, s, other)), ShouldResemble, []string{"a"})
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, []string{"c", "a", "d", "b"})

				users, err := s.Users(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldContain, user)
				So(users, ShouldContain, other)

				nUsers, nItems, err := s.Totals(ctx)
				So(err, ShouldBeNil)
				So(nUsers, ShouldBeGreaterThanOrEqualTo, 2)
				So(nItems, ShouldBeGreaterThanOrEqualTo, 5)
			})
		})

		Convey("When applying a random sequence of inserts and removes", func() {
			rng := rand.New(rand.NewSource(7))
			var ref []string
			next := 0

			for step := 0; step < 150; step++ {
				if len(ref) > 0 && rng.Intn(3) == 0 {
					idx := rng.Intn(len(ref))
					_, err := s.RemoveAt(ctx, user, ref[idx])
					So(err, ShouldBeNil)
					ref = append(ref[:idx], ref[idx+1:]...)
				} else {
					pos := rng.Intn(len(ref)+1) + 1
					id := fmt.Sprintf("g%03d", next)
					next++
					_, err := s.InsertAt(ctx, user, id, pos, loved)
					So(err, ShouldBeNil)
					ref = append(ref[:pos-1], append([]string{id}, ref[pos-1:]...)...)
				}
			}

			Convey("Then the store matches the reference order and stays dense", func() {
				So(itemIDs(mustList(ctx, s, user)), ShouldResemble, ref)
				n, err := s.Count(ctx, user)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, len(ref))
			})
		})

		Convey("When many writers insert for the same user concurrently", func() {
			const writers, perWriter = 8, 10
			var wg sync.WaitGroup
			errs := make(chan error, writers*perWriter)
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						if _, err := s.InsertAt(ctx, user, fmt.Sprintf("w%d-%d", w, i), 1, loved); err != nil {
							errs <- err
						}
					}
				}(w)
			}
			wg.Wait()
			close(errs)

			Convey("Then every insert lands and the list is a permutation", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				So(len(mustList(ctx, s, user)), ShouldEqual, writers*perWriter)
			})
		})
	})
}

func TestVerifyPermutation(t *testing.T) {
	Convey("Given lists to verify", t, func() {
		ok := []model.RankedItem{{ItemID: "a", Position: 1}, {ItemID: "b", Position: 2}}
		gap := []model.RankedItem{{ItemID: "a", Position: 1}, {ItemID: "b", Position: 3}}
		dup := []model.RankedItem{{ItemID: "a", Position: 1}, {ItemID: "a", Position: 2}}

		So(repository.VerifyPermutation(nil), ShouldBeNil)
		So(repository.VerifyPermutation(ok), ShouldBeNil)
		So(repository.VerifyPermutation(gap), ShouldNotBeNil)
		So(repository.VerifyPermutation(dup), ShouldNotBeNil)
	})
}

func TestErrorKind(t *testing.T) {
	Convey("Given wrapped store errors", t, func() {
		So(repository.ErrorKind(nil), ShouldEqual, "")
		So(repository.ErrorKind(fmt.Errorf("x: %w", repository.ErrAlreadyRanked)), ShouldEqual, "already_ranked")
		So(repository.ErrorKind(fmt.Errorf("x: %w", repository.ErrNotRanked)), ShouldEqual, "not_ranked")
		So(repository.ErrorKind(fmt.Errorf("x: %w", repository.ErrInvalidPosition)), ShouldEqual, "invalid_position")
		So(repository.ErrorKind(fmt.Errorf("x: %w", repository.ErrStorageUnavailable)), ShouldEqual, "unavailable")
		So(repository.ErrorKind(errors.New("boom")), ShouldEqual, "internal")
	})
}
