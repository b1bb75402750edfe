package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.rankingsInserted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_rankings_inserted_total")
			})
		})

		Convey("When registering the same manager twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration panics on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording ranking activity", func() {
			before := testutil.ToFloat64(globalManager.rankingsInserted)
			RecordRankingInserted()
			RecordRankingRemoved()
			RecordMetadataUpdate()
			RecordComparison("new_is_better")
			RecordDirectPlacement("empty_bucket")
			RecordComparisonsPerRanking(3)
			RecordConfirmReplay()

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.rankingsInserted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.comparisons.WithLabelValues("new_is_better")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When sessions start and finish", func() {
			active := testutil.ToFloat64(globalManager.sessionsActive)
			RecordSessionStarted()
			RecordSessionStarted()
			RecordSessionFinished("confirmed")

			Convey("Then the active gauge tracks the difference", func() {
				So(testutil.ToFloat64(globalManager.sessionsActive), ShouldEqual, active+1)
			})
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				RecordStoreOperation("insert_at", 1.5)
				RecordStoreError("insert_at", "unavailable")
				UpdateRankedItems(10)
				UpdateRankedUsers(2)
				UpdateLaneDepth("lane-0", 4)
				RecordLaneRejected()
				RecordLaneApply(0.3)
				UpdateLaneCount(8)
				RecordAuditRun()
				RecordAuditViolation()
				RecordHTTPRequest("rankings", "GET", "200")
				RecordHTTPRequestDuration("rankings", "GET", "200", 2)
				RecordErrorByComponent("api", "bad_request")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.rankedItems), ShouldEqual, 10)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
