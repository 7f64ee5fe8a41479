// FraudShield - Adaptive fraud risk scoring for payment transactions.
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prudenterpo/fraudshield/internal/api"
	"github.com/prudenterpo/fraudshield/internal/bayes"
	"github.com/prudenterpo/fraudshield/internal/bus"
	"github.com/prudenterpo/fraudshield/internal/cache"
	"github.com/prudenterpo/fraudshield/internal/combiner"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/optimizer"
	"github.com/prudenterpo/fraudshield/internal/repository"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/similarity"
	"github.com/prudenterpo/fraudshield/internal/velocity"
	"github.com/prudenterpo/fraudshield/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// velocityWindowSecs is the lookback used for the velocity_count
// variable in screening expressions.
const velocityWindowSecs = 3600

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("FRAUDSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting fraudshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()

	// Distributed mode swaps in postgres, redis, and NATS.
	if os.Getenv("FRAUDSHIELD_MODE") == "distributed" {
		cfg = domain.DistributedConfig()
		slog.Info("running in distributed mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"reject_threshold", cfg.Scoring.RejectThreshold,
		"review_threshold", cfg.Scoring.ReviewThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	velocitySvc := velocity.NewService(repo, cacheImpl)

	screening, err := rules.NewScreeningEngine(velocitySvc.Getter(), velocityWindowSecs)
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	defer screening.Close()

	// Screening rules live in the database and are configured via the
	// API; an empty set just means no advisory annotations.
	if err := loadScreeningRules(ctx, repo, screening); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screening.RulesCount())

	riskCombiner := combiner.New(
		rules.NewEngine(),
		similarity.NewAnalyzer(),
		bayes.NewEngine(),
		optimizer.New(),
		cfg.Scoring,
	)
	slog.Info("risk combiner initialized",
		"bayesian_weight", combiner.BayesianWeight,
	)

	var asyncWorker *worker.Worker
	if os.Getenv("FRAUDSHIELD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, riskCombiner, screening, velocitySvc)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "topic", domain.TopicTransactionIngested)
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, riskCombiner, screening, velocitySvc, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fraudshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fraudshield shutdown complete")
}

// applyEnvOverrides layers FRAUDSHIELD_* environment variables over the
// selected base configuration.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("FRAUDSHIELD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FRAUDSHIELD_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("FRAUDSHIELD_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("FRAUDSHIELD_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("FRAUDSHIELD_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("FRAUDSHIELD_REJECT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.RejectThreshold = n
		}
	}
	if v := os.Getenv("FRAUDSHIELD_REVIEW_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.ReviewThreshold = n
		}
	}
}

// loadScreeningRules loads enabled screening rules from the database
// into the engine.
func loadScreeningRules(ctx context.Context, repo domain.Repository, engine *rules.ScreeningEngine) error {
	dbRules, err := repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		return nil // Start with an empty set - rules can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading screening rules from database", "count", len(dbRules))
		return engine.ReloadRules(dbRules)
	}

	slog.Info("no screening rules in database - configure via POST /api/v1/screening-rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FraudShield - Adaptive Fraud Risk Scoring")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/transactions/analyze       - Score a transaction")
	fmt.Println("    GET  /api/v1/transactions/{id}          - Get transaction by ID")
	fmt.Println("    GET  /api/v1/transactions/{id}/assessment - Get assessment for a transaction")
	fmt.Println("    GET  /api/v1/assessments/{id}           - Get assessment by ID")
	fmt.Println("    POST /api/v1/feedback/fraud             - Report confirmed fraud outcome")
	fmt.Println("    GET  /api/v1/stats/overview             - Assessment counts and weights")
	fmt.Println("    GET  /api/v1/screening-rules            - List screening rules")
	fmt.Println("    POST /api/v1/screening-rules            - Create a screening rule")
	fmt.Println("    POST /api/v1/screening-rules/reload     - Hot-reload rules from database")
	fmt.Println("    GET  /health                            - Health check")
	fmt.Println()
}
