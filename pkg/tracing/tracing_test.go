package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/tracing"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestProvider(t *testing.T) {
	Convey("Given tracing configuration", t, func() {
		ctx := context.Background()

		Convey("When tracing is disabled", func() {
			p, err := tracing.NewProvider(ctx, tracing.Config{})
			So(err, ShouldBeNil)

			Convey("Then a no-op tracer is handed out", func() {
				So(p.Enabled(), ShouldBeFalse)
				_, span := p.Tracer("test").Start(ctx, "noop")
				So(span.SpanContext().IsValid(), ShouldBeFalse)
				span.End()
				So(p.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the service name is missing", func() {
			_, err := tracing.NewProvider(ctx, tracing.Config{Enabled: true, SamplingRate: 1})
			So(errors.Is(err, tracing.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the sampling rate is out of range", func() {
			_, err := tracing.NewProvider(ctx, tracing.Config{Enabled: true, ServiceName: "courtside", SamplingRate: 1.5})
			So(errors.Is(err, tracing.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the exporter is unknown", func() {
			_, err := tracing.NewProvider(ctx, tracing.Config{Enabled: true, ServiceName: "courtside", SamplingRate: 1, Exporter: "zipkin"})
			So(errors.Is(err, tracing.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the http exporter is configured", func() {
			p, err := tracing.NewProvider(ctx, tracing.Config{
				Enabled:      true,
				ServiceName:  "courtside",
				Exporter:     tracing.ExporterHTTP,
				Endpoint:     "127.0.0.1:4318",
				SamplingRate: 0,
				Insecure:     true,
			})
			So(err, ShouldBeNil)
			Reset(func() { _ = p.Shutdown(context.Background()) })

			Convey("Then spans carry valid contexts", func() {
				So(p.Enabled(), ShouldBeTrue)
				_, span := p.Tracer("test").Start(ctx, "op")
				So(span.SpanContext().IsValid(), ShouldBeTrue)
				span.End()
			})
		})
	})
}
