package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/distsched/config"
	"github.com/ErlanBelekov/distsched/internal/alert"
	"github.com/ErlanBelekov/distsched/internal/codec"
	"github.com/ErlanBelekov/distsched/internal/dispatch"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/health"
	"github.com/ErlanBelekov/distsched/internal/leaderlock"
	ctxlog "github.com/ErlanBelekov/distsched/internal/log"
	"github.com/ErlanBelekov/distsched/internal/metrics"
	"github.com/ErlanBelekov/distsched/internal/sink"
	"github.com/ErlanBelekov/distsched/internal/store"
	"github.com/ErlanBelekov/distsched/internal/store/postgres"
	"github.com/ErlanBelekov/distsched/internal/store/redisstore"
	httptransport "github.com/ErlanBelekov/distsched/internal/transport/http"
	"github.com/ErlanBelekov/distsched/internal/transport/http/handler"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// defaultEntries is where an operator wires in-memory, never-persisted
// schedule entries that should always exist regardless of what's in the
// store. Empty by default; spec.md §4.C's overlay machinery still applies
// to whatever is added here.
var defaultEntries []entries.Entry

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	registry := codec.DefaultRegistry()

	backing, storeLabel, pinger, closeStore := newBacking(ctx, cfg, rdb, registry, logger)
	defer closeStore()

	client := dispatch.NewClient(backing, defaultEntries)

	coordinator, err := leaderlock.New(backing, cfg.MaxInterval(), logger)
	if err != nil {
		stop()
		log.Fatalf("leaderlock: %v", err)
	}

	deliverySink := newSink(cfg, rdb, logger)

	scheduler := dispatch.NewScheduler(client, backing, coordinator, deliverySink, cfg.MaxInterval(), logger)

	metrics.Register()
	metrics.SchedulerStartTime.SetToCurrentTime()
	checker := health.NewChecker(pinger, storeLabel, logger, prometheus.DefaultRegisterer)

	entryHandler := handler.NewEntryHandler(client, registry, logger)
	healthHandler := handler.NewHealthHandler(checker)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, entryHandler, healthHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("client http surface started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	dispatchErrCh := make(chan error, 1)
	go func() {
		dispatchErrCh <- scheduler.Run(ctx, 0)
	}()

	select {
	case <-ctx.Done():
	case err := <-dispatchErrCh:
		if err != nil {
			logger.Error("dispatch loop exited", "error", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

// newBacking constructs the configured store.EntryStore backend along with
// a health.Pinger and label for it, and a cleanup func for its connection.
func newBacking(ctx context.Context, cfg *config.Config, rdb *redis.Client, registry *codec.Registry, logger *slog.Logger) (store.EntryStore, string, health.Pinger, func()) {
	switch cfg.StoreBackend {
	case "redis":
		return redisstore.NewStore(rdb, registry, cfg.LockTimeout()), "redis", redisPinger{rdb}, func() {}
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema: %v", err)
		}
		logger.Info("db connected")
		return postgres.NewStore(pool, registry, cfg.LockTimeout()), "postgres", pool, func() { pool.Close() }
	}
}

// redisPinger adapts *redis.Client's fluent Ping to health.Pinger.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func newSink(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) sink.Sink {
	var base sink.Sink
	switch cfg.SinkBackend {
	case "broker":
		base = sink.NewBrokerQueueSink(rdb, cfg.EntryPoint, logger)
	default:
		base = sink.NewSimpleQueueSink(rdb, cfg.EntryPoint)
	}

	if cfg.Env == "local" {
		notifier := alert.NewNotifier(cfg.Env, "", "", "", logger)
		return alert.NewNotifyingSink(base, notifier, logger)
	}
	notifier := alert.NewNotifier(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.AlertTo, logger)
	return alert.NewNotifyingSink(base, notifier, logger)
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
