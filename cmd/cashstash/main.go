package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashstash/internal/auth"
	"cashstash/internal/cache"
	"cashstash/internal/cli"
	"cashstash/internal/core"
	"cashstash/internal/feed"
	apphttp "cashstash/internal/http"
	"cashstash/internal/services"
)

const (
	statsCacheSize    = 1000
	cacheCleanupEvery = time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	b := res.Backend

	stats := cache.NewLRUCache[core.Stats](statsCacheSize, services.StatsTTL)
	caches := cache.NewManager(logger)
	caches.Register(stats)
	if c, ok := b.Revocations.(cache.Cleaner); ok {
		caches.Register(c)
	}
	caches.StartCleanup(cacheCleanupEvery)

	identity := auth.NewService(b.Store, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), b.Revocations, logger)
	ledger := services.NewTransactionService(b.Transactions, b.Store, logger,
		services.WithGuard(b.Guard),
		services.WithThreshold(cfg.LowBalanceThreshold),
		services.WithStatsCache(stats))

	go ledger.InvalidateOnChanges(ctx, b.Hub)
	if b.Distributed() {
		go func() {
			if err := b.RelayChanges(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change relay stopped", "error", err)
			}
		}()
	}

	ready := make([]apphttp.ReadinessCheck, 0, len(b.Ready))
	for _, check := range b.Ready {
		ready = append(ready, apphttp.ReadinessCheck(check))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledger,
		Identity: identity,
		Feed:     feed.NewSubscriber(b.Transactions, b.Hub, logger),
		Ready:    ready,
	}, apphttp.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})

	// Configure server timeouts and limits. WriteTimeout stays off so the
	// websocket feed is not cut after a fixed duration.
	srv.ReadHeaderTimeout = 5 * time.Second
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting cashstash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"balance_guard", cfg.BalanceGuard,
		"distributed", b.Distributed())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
