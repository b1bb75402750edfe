package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/courtside/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.SessionBackend, convey.ShouldEqual, config.SessionMemory)
			convey.So(cfg.MinRankedForScore, convey.ShouldEqual, 6)
			convey.So(cfg.WriterLanes, convey.ShouldEqual, 8)
			convey.So(cfg.WriterQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.IdempotencySize, convey.ShouldEqual, 10_000)
			convey.So(cfg.AuditSchedule, convey.ShouldEqual, "@every 10m")
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.TracingEnabled, convey.ShouldBeFalse)
			convey.So(cfg.TracingExporter, convey.ShouldEqual, "otlp-http")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs that break a constraint", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = "" },
			"unknown store":       func(c *config.Config) { c.StoreDriver = "mongo" },
			"sqlite without path": func(c *config.Config) { c.StoreDriver = config.StoreSQLite; c.SQLitePath = "" },
			"postgres no dsn":     func(c *config.Config) { c.StoreDriver = config.StorePostgres },
			"unknown sessions":    func(c *config.Config) { c.SessionBackend = "etcd" },
			"redis without addr":  func(c *config.Config) { c.SessionBackend = config.SessionRedis; c.RedisAddr = "" },
			"zero min ranked":     func(c *config.Config) { c.MinRankedForScore = 0 },
			"zero lanes":          func(c *config.Config) { c.WriterLanes = 0 },
			"negative ttl":        func(c *config.Config) { c.SessionTTL = -time.Second },
			"unknown exporter":    func(c *config.Config) { c.TracingEnabled = true; c.TracingExporter = "zipkin" },
			"sample rate above 1": func(c *config.Config) { c.TracingEnabled = true; c.TracingSampleRate = 2 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})

	convey.Convey("Given complete backend settings", t, func() {
		cfg := config.New()
		cfg.StoreDriver = config.StorePostgres
		cfg.PostgresDSN = "postgres://localhost/courtside"
		cfg.SessionBackend = config.SessionRedis
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}
