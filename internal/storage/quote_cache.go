package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/types"
)

// QuoteCache stores resolved quotes and exchange rates for a short TTL so
// repeated runs within the window do not hit the providers again.
type QuoteCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewQuoteCache creates a quote cache over r
func NewQuoteCache(r *RedisCache, ttl time.Duration) *QuoteCache {
	return &QuoteCache{redis: r, ttl: ttl}
}

// QuoteKey returns the cache key of a holding quote
func QuoteKey(category types.Category, code string) string {
	return fmt.Sprintf("quote:%s:%s", category, code)
}

// RateKey returns the cache key of an exchange rate
func RateKey(pair string) string {
	return fmt.Sprintf("fx:%s", pair)
}

// GetPrice returns the cached price of a holding; ok is false on a miss
func (c *QuoteCache) GetPrice(ctx context.Context, category types.Category, code string) (decimal.Decimal, bool, error) {
	return c.get(ctx, QuoteKey(category, code))
}

// SetPrice caches the price of a holding
func (c *QuoteCache) SetPrice(ctx context.Context, category types.Category, code string, price decimal.Decimal) error {
	return c.set(ctx, QuoteKey(category, code), price)
}

// GetRate returns the cached exchange rate of pair; ok is false on a miss
func (c *QuoteCache) GetRate(ctx context.Context, pair string) (decimal.Decimal, bool, error) {
	return c.get(ctx, RateKey(pair))
}

// SetRate caches the exchange rate of pair
func (c *QuoteCache) SetRate(ctx context.Context, pair string, rate decimal.Decimal) error {
	return c.set(ctx, RateKey(pair), rate)
}

func (c *QuoteCache) get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	raw, err := c.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, apperrors.NewCacheError("get "+key, err)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil || !value.IsPositive() {
		// unreadable entries are dropped and treated as a miss
		_ = c.redis.Del(ctx, key)
		return decimal.Zero, false, nil
	}
	return value, true, nil
}

func (c *QuoteCache) set(ctx context.Context, key string, value decimal.Decimal) error {
	if !value.IsPositive() {
		return nil
	}
	if err := c.redis.Set(ctx, key, value.String(), c.ttl); err != nil {
		return apperrors.NewCacheError("set "+key, err)
	}
	return nil
}
