package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okian/courtside/internal/adapters/http/api"
	"github.com/okian/courtside/internal/adapters/http/swagger"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/session"
	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/config"
	"github.com/okian/courtside/internal/jobs/audit"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
	"github.com/okian/courtside/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	connectMaxElapsed         = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Get().Warn(context.Background(), "failed to read .env", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "courtside exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run wires every component from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	if cfg.LogFormat != "" && cfg.LogFormat != "text" {
		if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Get()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:  "courtside",
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		Endpoint:     cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		Insecure:     cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Warn(flushCtx, "failed to flush traces", logger.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("rank store: %w", err)
	}
	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("session store: %w", err)
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithTracer(tp.Tracer("github.com/okian/courtside/internal/app")),
		service.WithStore(store),
		service.WithSessionStore(sessions),
		service.WithWriterLanes(cfg.WriterLanes),
		service.WithWriterQueueSize(cfg.WriterQueueSize),
		service.WithIdempotencySize(cfg.IdempotencySize),
		service.WithMinRankedForScore(cfg.MinRankedForScore),
		service.WithMaxFavoredSides(cfg.MaxFavoredSides),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	auditor := audit.New(svc.Store(), audit.WithLogger(log.Named("audit")))
	if cfg.AuditSchedule != "" {
		if err := auditor.Start(ctx, cfg.AuditSchedule); err != nil {
			svc.Stop(context.Background())
			return fmt.Errorf("audit: %w", err)
		}
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store_driver", cfg.StoreDriver),
			logger.String("session_backend", cfg.SessionBackend),
			logger.Bool("auth", cfg.JWTSecret != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := auditor.Stop(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "audit job did not stop", logger.Error(err))
	}
	svc.Stop(shutdownCtx)
	_ = logger.Sync()

	log.Info(shutdownCtx, "server stopped")
	return runErr
}

// newHandler builds the full HTTP surface: business API, docs and tracing.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	server := api.NewServer(svc,
		api.WithJWTSecret(cfg.JWTSecret),
		api.WithLogger(logger.Get().Named("http")),
	)
	r := server.Router(ctx)
	swagger.Register(ctx, r)
	return otelhttp.NewHandler(r, "courtside")
}

// connectPolicy retries backend connects with exponential backoff until
// ctx ends or connectMaxElapsed passes.
func connectPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectMaxElapsed
	return backoff.WithContext(b, ctx)
}

// openStore opens the configured rank store. Network-backed drivers are
// retried while the backend comes up.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	log := logger.Get()
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return repository.NewTreapStore(ctx), nil
	case config.StoreSQLite:
		return repository.NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		var store *repository.PostgresStore
		err := backoff.RetryNotify(func() error {
			s, err := repository.NewPostgresStore(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			store = s
			return nil
		}, connectPolicy(ctx), func(err error, wait time.Duration) {
			log.Warn(ctx, "postgres not ready; retrying", logger.Error(err), logger.Duration("wait", wait))
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// openSessions opens the configured wizard session store.
func openSessions(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		return session.NewMemoryStore(), nil
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		err := backoff.RetryNotify(func() error {
			return client.Ping(ctx).Err()
		}, connectPolicy(ctx), func(err error, wait time.Duration) {
			logger.Get().Warn(ctx, "redis not ready; retrying", logger.Error(err), logger.Duration("wait", wait))
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		store, err := session.NewRedisStore(client, session.WithTTL(cfg.SessionTTL))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown session_backend %q", config.ErrInvalidConfig, cfg.SessionBackend)
	}
}

// startSystemMetricsUpdater updates runtime metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater mirrors service stats into gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if users, ok := stats["ranked_users"].(int); ok {
		metrics.UpdateRankedUsers(users)
	}
	if items, ok := stats["ranked_items"].(int); ok {
		metrics.UpdateRankedItems(items)
	}
	if lanes, ok := stats["writer_lanes"].(int); ok {
		metrics.UpdateLaneCount(lanes)
	}
}
