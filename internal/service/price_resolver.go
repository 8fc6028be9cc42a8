package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/adapter"
	"github.com/portfolio-sync/internal/circuitbreaker"
	"github.com/portfolio-sync/internal/logging"
	"github.com/portfolio-sync/internal/types"
)

// overseasPricePlaces is the precision overseas quotes are stored with
const overseasPricePlaces = 2

// PriceResolver dispatches a holding to the provider of its category.
// Failures never escape: the price is reported as unavailable instead.
type PriceResolver struct {
	providers map[types.Category]adapter.QuoteProvider
	breakers  *circuitbreaker.CircuitBreakerManager
	cache     QuoteCache
}

// NewPriceResolver creates a price resolver. breakers and cache may be nil.
func NewPriceResolver(domestic, overseas adapter.QuoteProvider, breakers *circuitbreaker.CircuitBreakerManager, cache QuoteCache) *PriceResolver {
	return &PriceResolver{
		providers: map[types.Category]adapter.QuoteProvider{
			types.CategoryDomestic: domestic,
			types.CategoryOverseas: overseas,
		},
		breakers: breakers,
		cache:    cache,
	}
}

// Resolve returns the latest price of code, or types.Unavailable
func (r *PriceResolver) Resolve(ctx context.Context, code string, category types.Category) types.Price {
	provider, ok := r.providers[category]
	if !ok || provider == nil || code == "" {
		return types.Unavailable
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"code":     code,
		"category": category,
		"provider": provider.Name(),
	})

	if r.cache != nil {
		cached, ok, err := r.cache.GetPrice(ctx, category, code)
		if err != nil {
			logger.WithError(err).Warn("Quote cache read failed")
		} else if ok {
			logger.Debug("Price served from cache")
			return types.NewPrice(cached)
		}
	}

	var value decimal.Decimal
	fetch := func(ctx context.Context) error {
		var err error
		value, err = provider.Price(ctx, code)
		return err
	}

	var err error
	if r.breakers != nil {
		err = r.breakers.Get(provider.Name()).Execute(ctx, fetch)
	} else {
		err = fetch(ctx)
	}

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrProbeInFlight) {
			logger.Warn("Provider circuit open, price unavailable")
		} else {
			logger.WithError(err).Warn("Price lookup failed")
		}
		return types.Unavailable
	}

	if category == types.CategoryOverseas {
		value = value.Round(overseasPricePlaces)
	}

	price := types.NewPrice(value)
	if !price.Available {
		logger.WithField("value", value.String()).Warn("Provider returned a non-positive price")
		return types.Unavailable
	}

	if r.cache != nil {
		if err := r.cache.SetPrice(ctx, category, code, price.Value); err != nil {
			logger.WithError(err).Warn("Quote cache write failed")
		}
	}
	return price
}
