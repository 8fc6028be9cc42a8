// Package main provides the run-once portfolio price sync job.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-sync/internal/adapter"
	"github.com/portfolio-sync/internal/circuitbreaker"
	"github.com/portfolio-sync/internal/config"
	"github.com/portfolio-sync/internal/logging"
	"github.com/portfolio-sync/internal/ratelimit"
	"github.com/portfolio-sync/internal/service"
	"github.com/portfolio-sync/internal/storage"
	"github.com/portfolio-sync/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.WithError(err).Error("Failed to load configuration")
		return 1
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Configuration invalid, nothing was synced")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	// Quote cache is optional; the run continues without it
	var cache service.QuoteCache
	if cfg.Redis.Addr != "" {
		redisCache, err := storage.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Quote cache unavailable, continuing without it")
		} else {
			defer redisCache.Close()
			cache = storage.NewQuoteCache(redisCache, cfg.Cache.TTL)
			logger.WithField("addr", cfg.Redis.Addr).Info("Quote cache enabled")
		}
	}

	httpClient := adapter.NewHTTPClient(cfg.HTTP.Timeout)
	notion := adapter.NewNotionClient(cfg.Notion, cfg.AutoBuy.Weekday, httpClient)
	naver := adapter.NewNaverClient(cfg.Quotes, httpClient)
	yahoo := adapter.NewYahooClient(cfg.Quotes, httpClient)

	breakers := circuitbreaker.NewCircuitBreakerManager(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)
	rates := service.NewRateResolver(yahoo, cfg.FX.Pair, cfg.FX.FallbackRate, cache)
	prices := service.NewPriceResolver(naver, yahoo, breakers, cache)
	pacer := ratelimit.NewPacer(cfg.Sync.RecordDelay)

	svc := service.NewSyncService(notion, rates, prices, pacer, cfg.Sync.DryRun)

	today := types.DateOf(time.Now(), cfg.Timezone)
	logger.WithFields(map[string]interface{}{
		"date":     today.String(),
		"timezone": cfg.Timezone.String(),
		"dry_run":  cfg.Sync.DryRun,
	}).Info("Portfolio sync starting")

	summary, err := svc.Run(ctx, today)
	fields := map[string]interface{}{
		"run_id":        summary.RunID,
		"total":         summary.Total,
		"updated":       summary.Updated,
		"purchased":     summary.Purchased,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
		"rate":          summary.Rate.String(),
		"rate_fallback": summary.RateFallback,
		"duration":      summary.Duration.String(),
		"breakers":      breakers.States(),
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.WithFields(fields).Warn("Portfolio sync interrupted")
		} else {
			logger.WithFields(fields).WithError(err).Error("Portfolio sync failed")
		}
		return 1
	}

	logger.WithFields(fields).Info("Portfolio sync finished")
	return 0
}
