package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/mlapi/internal/api"
	"github.com/af-corp/mlapi/internal/config"
	"github.com/af-corp/mlapi/internal/policy"
	"github.com/af-corp/mlapi/internal/ratelimit"
	"github.com/af-corp/mlapi/internal/router/adapters"
	"github.com/af-corp/mlapi/internal/store"
	"github.com/af-corp/mlapi/internal/synth"
	"github.com/af-corp/mlapi/internal/telemetry"
)

var version = "dev"

func main() {
	settingsPath := flag.String("settings", "configs/mlapi.yaml", "path to the mlapi settings file")
	documentPath := flag.String("config", "", "configuration document; defaults to synth.document")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load configuration
	loader := config.NewLoader(*settingsPath, *documentPath, bootLogger)
	if err := loader.Load(); err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := telemetry.NewLogger(os.Stdout, cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	defer loader.Close()

	metrics := telemetry.NewMetrics()

	// Synthesis history
	var history store.Store
	if cfg.Database.Enabled {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (history writes will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		history = store.NewBreakerStore(store.NewPGStore(dbPool), cfg.Database.FailureThreshold, cfg.Database.RecoveryInterval, metrics)
	}

	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (manifest cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
			defer rdb.Close()
		}
	}
	if history != nil || rdb != nil {
		history = store.NewCachedStore(history, rdb, cfg.Redis.CacheTTL, metrics)
	}

	// Policy gate
	opts := synth.Options{
		Environment: adapters.Environment{Region: cfg.Synth.Region, Account: cfg.Synth.Account},
		Metrics:     metrics,
		Logger:      logger,
		Source:      "http",
	}
	if cfg.Policy.Enabled {
		evaluator := policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy }, metrics)
		if err := evaluator.Load(); err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
		loader.OnReload(func() {
			if err := evaluator.Load(); err != nil {
				logger.Error("failed to reload policies", "error", err)
			}
		})
		opts.Gate = evaluator
	}

	handler := api.NewHandler(synth.NewCompiler(opts), history, metrics, cfg.Server.MaxBodyBytes, version)
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
		defer cancel()
		if err := handler.Refresh(ctx, loader.Document()); err != nil {
			logger.Error("configured document rejected, serving previous manifest", "document", loader.DocumentPath(), "error", err)
			return
		}
		logger.Info("manifest refreshed", "document", loader.DocumentPath())
	}
	refresh()
	loader.OnReload(refresh)

	rateLimit := ratelimit.Middleware(ratelimit.NewLimiter(rdb), func() config.RateLimitConfig {
		return loader.Config().Server.RateLimit
	}, metrics)

	// Metrics endpoint
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(rateLimit),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("synthd starting", "addr", addr, "metrics_port", cfg.Telemetry.MetricsPort, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	metricsSrv.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("synthd stopped")
}
