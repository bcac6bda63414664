// FraudShield - Fraud monitoring that deploys in 60 seconds.
// Copyright (c) 2025 fraudshield
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/api"
	"github.com/fraudshield/fraudshield/internal/bus"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/engine"
	"github.com/fraudshield/fraudshield/internal/history"
	"github.com/fraudshield/fraudshield/internal/kyc"
	"github.com/fraudshield/fraudshield/internal/rules"
	"github.com/fraudshield/fraudshield/internal/store"
	"github.com/fraudshield/fraudshield/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FRAUDSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting fraudshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("FRAUDSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
		"eventbus", cfg.EventBus.Type,
		"auth", cfg.Auth.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Store
	kv, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize history and batch data from the store
	hist := history.NewStore(kv)
	if err := hist.Load(ctx); err != nil {
		slog.Error("failed to load history", "error", err)
		os.Exit(1)
	}
	slog.Info("history loaded", "entries", hist.Len())

	batch := history.NewBatchData(kv)
	if err := batch.Load(ctx); err != nil {
		slog.Error("failed to load batch rows", "error", err)
		os.Exit(1)
	}

	// Initialize Rule Engine and load persisted rules
	ruleEngine, err := rules.NewEngine(kv, 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer ruleEngine.Close()
	if err := ruleEngine.Load(ctx); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize alert manager and rebuild the alert window from the
	// restored history
	alertMgr := alerts.NewManager()
	alertMgr.Refresh(hist.Entries(), nil)

	// Initialize KYC registry
	registry := kyc.NewRegistry(kv)
	if err := registry.Load(ctx); err != nil {
		slog.Error("failed to load kyc verifications", "error", err)
		os.Exit(1)
	}

	// Initialize Prediction Engine
	eng := engine.New(hist, batch, alertMgr, ruleEngine, registry, busImpl, cfg.Engine)
	slog.Info("prediction engine initialized", "batch_chunk_size", cfg.Engine.BatchChunkSize)

	// Initialize async ingestion Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("FRAUDSHIELD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, eng)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg, eng, registry, kv, busImpl, Version)

	// Start Server in goroutine
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

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
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

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("FRAUDSHIELD_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("FRAUDSHIELD_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("FRAUDSHIELD_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("FRAUDSHIELD_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if os.Getenv("FRAUDSHIELD_AUTH") == "true" {
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("FRAUDSHIELD_AUTH_EMAIL"); v != "" {
		cfg.Auth.Email = v
	}
	if v := os.Getenv("FRAUDSHIELD_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FraudShield - Fraud Monitoring Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict            - Score a single transaction")
	fmt.Println("    POST /predict/batch      - Score uploaded or inline rows")
	fmt.Println("    POST /batch              - Upload batch rows")
	fmt.Println("    GET  /history            - List prediction history")
	fmt.Println("    GET  /history/export     - Export history as CSV")
	fmt.Println("    GET  /alerts             - Current alerts")
	fmt.Println("    GET  /patterns           - Detected fraud patterns")
	fmt.Println("    GET  /analytics/summary  - Batch analytics")
	fmt.Println("    GET  /metrics            - Model performance metrics")
	fmt.Println("    POST /kyc/verify         - Verify a KYC document")
	fmt.Println("    GET  /rules              - List custom alert rules")
	fmt.Println("    POST /rules              - Create a custom alert rule")
	fmt.Println("    POST /rules/reload       - Hot-reload rules from the store")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}
