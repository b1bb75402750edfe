package types_test

import (
	"testing"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/scoring"
	types "github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/internal/domain/wizard"
	. "github.com/smartystreets/goconvey/convey"
)

func list(n int) []model.RankedItem {
	out := make([]model.RankedItem, n)
	for i := range out {
		out[i] = model.RankedItem{
			UserID:    "u1",
			ItemID:    "g" + string(rune('a'+i)),
			Position:  i + 1,
			Sentiment: model.SentimentGood,
			Affinity:  model.AffinityNone,
		}
	}
	return out
}

func TestEntry(t *testing.T) {
	Convey("Given a gate with the default threshold", t, func() {
		gate := scoring.NewGate()

		Convey("When the list is too short", func() {
			e := types.NewEntry(list(3)[1], 3, gate)

			Convey("Then the score is hidden and the remaining count shown", func() {
				So(e.Score, ShouldBeNil)
				So(e.Remaining, ShouldEqual, 3)
				So(e.Label, ShouldEqual, "#2 of 3")
				So(e.Sentiment, ShouldEqual, "good")
			})
		})

		Convey("When the list reaches the threshold", func() {
			e := types.NewEntry(list(6)[0], 6, gate)

			Convey("Then the top item scores 10.0", func() {
				So(e.Score, ShouldNotBeNil)
				So(*e.Score, ShouldEqual, 10.0)
				So(e.ScoreDisplay, ShouldEqual, "10.0")
				So(e.Remaining, ShouldEqual, 0)
			})
		})
	})
}

func TestRanking(t *testing.T) {
	Convey("Given a six item list", t, func() {
		r := types.NewRanking("u1", list(6), scoring.NewGate())

		Convey("Then every row is scored in descending order", func() {
			So(r.Total, ShouldEqual, 6)
			So(r.ScoresShown, ShouldBeTrue)
			So(len(r.Items), ShouldEqual, 6)
			So(*r.Items[5].Score, ShouldEqual, 0.0)
			So(*r.Items[0].Score, ShouldBeGreaterThan, *r.Items[1].Score)
		})
	})

	Convey("Given an empty list", t, func() {
		r := types.NewRanking("u1", nil, scoring.NewGate(scoring.WithMinRanked(2)))

		Convey("Then items is empty and scores are hidden", func() {
			So(r.Items, ShouldBeEmpty)
			So(r.ScoresShown, ShouldBeFalse)
			So(r.Remaining, ShouldEqual, 2)
		})
	})
}

func TestSessionView(t *testing.T) {
	Convey("Given a session comparing inside the good bucket", t, func() {
		s := wizard.New("s1", "u1", model.Matchup{ItemID: "new", SideA: "BOS", SideB: "NYK"}, nil, time.Now())
		So(s.Load(list(3)), ShouldBeNil)
		So(s.ChooseSentiment(model.SentimentGood), ShouldBeNil)

		v := types.NewSession(s, scoring.NewGate())

		Convey("Then the prompt names the middle candidate", func() {
			So(v.Step, ShouldEqual, "comparison")
			So(v.Prompt, ShouldNotBeNil)
			So(v.Prompt.Against.ItemID, ShouldEqual, "gb")
			So(v.Prompt.Step, ShouldEqual, 1)
			So(v.Prompt.EstimatedTotal, ShouldEqual, 2)
			So(v.Preview, ShouldBeNil)
		})

		Convey("When the search finishes", func() {
			So(s.Compare(model.NewIsBetter), ShouldBeNil)
			So(s.Compare(model.NewIsBetter), ShouldBeNil)
			v := types.NewSession(s, scoring.NewGate())

			Convey("Then the placement is previewed", func() {
				So(v.Step, ShouldEqual, "placement")
				So(v.Position, ShouldEqual, 1)
				So(v.Total, ShouldEqual, 4)
				So(v.Preview, ShouldNotBeNil)
				So(v.Preview.Shown, ShouldBeFalse)
				So(v.Prompt, ShouldBeNil)
			})
		})
	})
}
