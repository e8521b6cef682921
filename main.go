package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cfg "github.com/agentworld/alba/go/orchestrator/internal/config"
	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/gateway"
	"github.com/agentworld/alba/go/orchestrator/internal/httpapi"
	_ "github.com/agentworld/alba/go/orchestrator/internal/metrics" // Import for side effects
	"github.com/agentworld/alba/go/orchestrator/internal/outreach"
	"github.com/agentworld/alba/go/orchestrator/internal/pipeline"
	"github.com/agentworld/alba/go/orchestrator/internal/ratelimit"
	"github.com/agentworld/alba/go/orchestrator/internal/tracker"
	"github.com/agentworld/alba/go/orchestrator/internal/workflows"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	conf, err := cfg.Load(getEnvOrDefault("CONFIG_PATH", "config/alba.yaml"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dbClient, err := db.NewClient(&conf.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbClient.Close()

	// Shared limiter for the outreach channel. Redis keeps the counter
	// consistent across replicas; a single replica can run on memory.
	var limiter ratelimit.Limiter
	limitCfg := ratelimit.Config{
		MaxRequests: conf.Outreach.MaxRequests,
		Window:      conf.Outreach.Window,
	}
	if conf.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
		})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, limitCfg, logger)
		logger.Info("Using Redis rate limiter", zap.String("addr", conf.Redis.Addr))
	} else {
		limiter = ratelimit.NewMemoryLimiter(limitCfg, logger)
	}

	gw := gateway.NewHTTPGateway(gateway.Config{
		BaseURL: conf.Gateway.BaseURL,
		APIKey:  conf.Gateway.APIKey,
		Timeout: conf.Gateway.Timeout,
	}, dbClient, logger)
	if conf.GatewayLimit.MaxRequests > 0 {
		gw.WithRateLimiter(ratelimit.NewMemoryLimiter(ratelimit.Config{
			MaxRequests: conf.GatewayLimit.MaxRequests,
			Window:      conf.GatewayLimit.Window,
		}, logger))
	}

	tr := tracker.New(dbClient, logger)
	pipe := pipeline.New(gw, dbClient, tr, logger)
	step := outreach.New(dbClient, gw, limiter, tr, logger)

	catalog := workflows.DefaultCatalog()
	if path := conf.Orchestrator.CatalogPath; path != "" {
		catalog, err = workflows.LoadCatalog(path)
		if err != nil {
			logger.Fatal("Failed to load workflow catalog", zap.String("path", path), zap.Error(err))
		}
		logger.Info("Loaded workflow catalog",
			zap.String("path", path),
			zap.Strings("workflows", catalog.Names()),
		)
	}

	orch := workflows.New(pipe, step, catalog, workflows.Options{
		Workers:     conf.Orchestrator.Workers,
		SweepBudget: conf.Orchestrator.SweepBudget,
	}, logger)

	mux := http.NewServeMux()
	httpapi.NewTriggerHandler(orch, dbClient, conf.Orchestrator.Workflow, conf.HTTP.TriggerSecret, logger).RegisterRoutes(mux)
	httpapi.NewQueryHandler(dbClient, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbClient.Ping(ctx); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", conf.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // sweeps answer on the request path
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", conf.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
