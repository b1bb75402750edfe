package model_test

import (
	"testing"

	"github.com/okian/courtside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSentimentOrdering(t *testing.T) {
	Convey("Given the four sentiment buckets", t, func() {
		Convey("Then they are ordered loved > good > okay > bad", func() {
			So(model.SentimentLoved.PreferredOver(model.SentimentGood), ShouldBeTrue)
			So(model.SentimentGood.PreferredOver(model.SentimentOkay), ShouldBeTrue)
			So(model.SentimentOkay.PreferredOver(model.SentimentBad), ShouldBeTrue)
			So(model.SentimentBad.PreferredOver(model.SentimentLoved), ShouldBeFalse)
			So(model.SentimentGood.PreferredOver(model.SentimentGood), ShouldBeFalse)
		})

		Convey("Then names and validity match the wire format", func() {
			names := make([]string, 0, len(model.Sentiments))
			for _, s := range model.Sentiments {
				So(s.Valid(), ShouldBeTrue)
				names = append(names, s.String())
			}
			So(names, ShouldResemble, []string{"loved", "good", "okay", "bad"})
			So(model.Sentiment(0).Valid(), ShouldBeFalse)
			So(model.Sentiment(9).String(), ShouldEqual, "unknown")
		})
	})
}

func TestAffinityAndResultValidity(t *testing.T) {
	Convey("Given affinity and comparison values", t, func() {
		So(model.AffinityBoth.Valid(), ShouldBeTrue)
		So(model.Affinity("home").Valid(), ShouldBeFalse)
		So(model.NewIsBetter.Valid(), ShouldBeTrue)
		So(model.ComparisonResult("tie").Valid(), ShouldBeFalse)
	})
}
