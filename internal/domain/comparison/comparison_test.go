package comparison_test

import (
	"errors"
	"testing"

	"github.com/okian/courtside/internal/domain/comparison"
	"github.com/okian/courtside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given a search window", t, func() {
		Convey("When it spans three candidates", func() {
			s := comparison.Init(1, 3)

			Convey("Then the midpoint and estimate are derived from the window", func() {
				So(s.MidIndex, ShouldEqual, 2)
				So(s.Step, ShouldEqual, 1)
				So(s.EstimatedTotal, ShouldEqual, 2)
			})
		})

		Convey("When it spans a single candidate", func() {
			s := comparison.Init(1, 1)
			So(s.MidIndex, ShouldEqual, 1)
			So(s.EstimatedTotal, ShouldEqual, 1)
		})

		Convey("When low is greater than high", func() {
			Convey("Then it panics with ErrEmptyComparisonRange", func() {
				var recovered any
				func() {
					defer func() { recovered = recover() }()
					comparison.Init(3, 2)
				}()
				err, ok := recovered.(error)
				So(ok, ShouldBeTrue)
				So(errors.Is(err, comparison.ErrEmptyComparisonRange), ShouldBeTrue)
			})
		})
	})
}

func TestAdvance(t *testing.T) {
	Convey("Given the worked example: three loved items, new loved item", t, func() {
		s := comparison.Init(1, 3)
		So(s.MidIndex, ShouldEqual, 2)

		Convey("When the existing item is better", func() {
			out, err := comparison.Advance(s, model.ExistingIsBetter)
			So(err, ShouldBeNil)
			So(out.Done, ShouldBeFalse)
			So(out.Next.Low, ShouldEqual, 3)
			So(out.Next.High, ShouldEqual, 3)
			So(out.Next.MidIndex, ShouldEqual, 3)
			So(out.Next.Step, ShouldEqual, 2)

			Convey("And then the new item is better", func() {
				final, err := comparison.Advance(out.Next, model.NewIsBetter)

				Convey("Then the search ends at filtered position 3", func() {
					So(err, ShouldBeNil)
					So(final.Done, ShouldBeTrue)
					So(final.Position, ShouldEqual, 3)
				})
			})
		})

		Convey("When the answer is unknown", func() {
			_, err := comparison.Advance(s, model.ComparisonResult("draw"))
			So(errors.Is(err, comparison.ErrInvalidResult), ShouldBeTrue)
		})
	})

	Convey("Given a one-candidate bucket", t, func() {
		s := comparison.Init(1, 1)

		Convey("Then a single answer collapses the window", func() {
			better, _ := comparison.Advance(s, model.NewIsBetter)
			So(better.Done, ShouldBeTrue)
			So(better.Position, ShouldEqual, 1)

			worse, _ := comparison.Advance(s, model.ExistingIsBetter)
			So(worse.Done, ShouldBeTrue)
			So(worse.Position, ShouldEqual, 2)
		})
	})
}

func TestRunTermination(t *testing.T) {
	Convey("Given consistent answers for every window and every true slot", t, func() {
		for _, low := range []int{1, 4} {
			for n := 1; n <= 64; n++ {
				high := low + n - 1
				for slot := low; slot <= high+1; slot++ {
					oracle := func(mid int) model.ComparisonResult {
						if mid < slot {
							return model.ExistingIsBetter
						}
						return model.NewIsBetter
					}
					pos, steps, err := comparison.Run(low, high, oracle)
					So(err, ShouldBeNil)
					So(pos, ShouldEqual, slot)
					So(steps, ShouldBeLessThanOrEqualTo, comparison.EstimateSteps(n))
				}
			}
		}
	})

	Convey("Given contradictory answers", t, func() {
		flip := false
		oracle := func(int) model.ComparisonResult {
			flip = !flip
			if flip {
				return model.NewIsBetter
			}
			return model.ExistingIsBetter
		}
		pos, steps, err := comparison.Run(1, 20, oracle)

		Convey("Then the search still terminates inside the window", func() {
			So(err, ShouldBeNil)
			So(pos, ShouldBeBetweenOrEqual, 1, 21)
			So(steps, ShouldBeLessThanOrEqualTo, comparison.EstimateSteps(20))
		})
	})
}

func TestEstimateSteps(t *testing.T) {
	Convey("Given window sizes", t, func() {
		So(comparison.EstimateSteps(0), ShouldEqual, 1)
		So(comparison.EstimateSteps(1), ShouldEqual, 1)
		So(comparison.EstimateSteps(2), ShouldEqual, 2)
		So(comparison.EstimateSteps(3), ShouldEqual, 2)
		So(comparison.EstimateSteps(4), ShouldEqual, 3)
		So(comparison.EstimateSteps(7), ShouldEqual, 3)
		So(comparison.EstimateSteps(8), ShouldEqual, 4)
	})
}
