package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/adapter"
	"github.com/portfolio-sync/internal/logging"
)

// FXQuote is a resolved exchange rate. Fallback is set when the configured
// default was used instead of a live quote.
type FXQuote struct {
	Rate     decimal.Decimal
	Fallback bool
	Cached   bool
}

// RateResolver resolves the KRW per USD rate once per run
type RateResolver struct {
	provider adapter.QuoteProvider
	pair     string
	fallback decimal.Decimal
	cache    QuoteCache
}

// NewRateResolver creates a rate resolver. cache may be nil.
func NewRateResolver(provider adapter.QuoteProvider, pair string, fallback decimal.Decimal, cache QuoteCache) *RateResolver {
	return &RateResolver{
		provider: provider,
		pair:     pair,
		fallback: fallback,
		cache:    cache,
	}
}

// Resolve returns the current rate, or the fallback rate when it cannot be fetched
func (r *RateResolver) Resolve(ctx context.Context) decimal.Decimal {
	return r.Quote(ctx).Rate
}

// Quote resolves the rate and reports where it came from. It never fails.
func (r *RateResolver) Quote(ctx context.Context) FXQuote {
	logger := logging.FromContext(ctx).WithField("pair", r.pair)

	if r.cache != nil {
		rate, ok, err := r.cache.GetRate(ctx, r.pair)
		if err != nil {
			logger.WithError(err).Warn("Quote cache read failed")
		} else if ok {
			return FXQuote{Rate: rate, Cached: true}
		}
	}

	rate, err := r.provider.Price(ctx, r.pair)
	if err != nil || !rate.IsPositive() {
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.WithField("fallback", r.fallback.String()).Warn("Exchange rate unavailable, using fallback rate")
		return FXQuote{Rate: r.fallback, Fallback: true}
	}

	if r.cache != nil {
		if err := r.cache.SetRate(ctx, r.pair, rate); err != nil {
			logger.WithError(err).Warn("Quote cache write failed")
		}
	}
	return FXQuote{Rate: rate}
}
