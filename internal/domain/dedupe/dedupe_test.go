package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/courtside/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is recorded", func() {
			So(d.SeenAndRecord(ctx, "u1:k1"), ShouldBeFalse)

			Convey("Then it is seen on the next call", func() {
				So(d.SeenAndRecord(ctx, "u1:k1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then it has no result until one is remembered", func() {
				_, ok := d.Recall(ctx, "u1:k1")
				So(ok, ShouldBeFalse)

				d.Remember(ctx, "u1:k1", 3)
				v, ok := d.Recall(ctx, "u1:k1")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 3)
			})

			Convey("Then unrecording allows a retry", func() {
				d.Unrecord(ctx, "u1:k1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "u1:k1"), ShouldBeFalse)
			})
		})

		Convey("When remembering an unknown key", func() {
			d.Remember(ctx, "missing", "x")

			Convey("Then nothing is stored", func() {
				_, ok := d.Recall(ctx, "missing")
				So(ok, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, k := range []string{"k1", "k2", "k3"} {
			So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
		}
		d.Remember(ctx, "k1", "first")

		Convey("When a fourth key arrives", func() {
			So(d.SeenAndRecord(ctx, "k4"), ShouldBeFalse)

			Convey("Then the oldest key is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Recall(ctx, "k1")
				So(ok, ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
			})
		})

		Convey("When a key is unrecorded and recorded again", func() {
			d.Unrecord(ctx, "k1")
			So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "k4"), ShouldBeFalse)

			Convey("Then the re-recorded key counts as the newest", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const n = 1000
		for i := 0; i < n; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, int64(n))
			So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When every goroutine records distinct keys", func() {
			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d-%d", id, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every key is kept", func() {
				So(d.Size(), ShouldEqual, int64(goroutines*perGoroutine))
			})
		})

		Convey("When goroutines race on the same key", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(context.Background(), "same") {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(fresh, ShouldEqual, 1)
			})
		})
	})
}
