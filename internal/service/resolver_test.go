package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-sync/internal/circuitbreaker"
	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/storage"
	"github.com/portfolio-sync/internal/types"
)

func newTestQuoteCache(t *testing.T) (*storage.QuoteCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewQuoteCache(storage.NewRedisCacheFromClient(client), time.Minute), mr
}

func TestRateResolver_Live(t *testing.T) {
	provider := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"KRW=X": d("1385.23456")}}
	r := NewRateResolver(provider, "KRW=X", d("1300"), nil)

	q := r.Quote(context.Background())
	assert.Equal(t, "1385.23456", q.Rate.String(), "live close is kept unrounded")
	assert.False(t, q.Fallback)
	assert.Equal(t, "1385.23456", r.Resolve(context.Background()).String())
}

func TestRateResolver_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{name: "network error", provider: &fakeProvider{name: "yahoo", err: errUpstream}},
		{name: "zero rate", provider: &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"KRW=X": decimal.Zero}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRateResolver(tt.provider, "KRW=X", d("1300"), nil)
			q := r.Quote(context.Background())
			assert.True(t, q.Fallback)
			assert.True(t, q.Rate.Equal(d("1300")))
		})
	}
}

func TestRateResolver_Cache(t *testing.T) {
	cache, mr := newTestQuoteCache(t)
	provider := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"KRW=X": d("1390")}}
	r := NewRateResolver(provider, "KRW=X", d("1300"), cache)

	first := r.Quote(context.Background())
	second := r.Quote(context.Background())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.True(t, second.Rate.Equal(d("1390")))
	assert.Equal(t, 1, provider.calls)

	// the fallback is never cached
	mr.FlushAll()
	provider.err = errUpstream
	assert.True(t, r.Quote(context.Background()).Fallback)
	assert.False(t, mr.Exists(storage.RateKey("KRW=X")))
}

func TestRateResolver_CacheDownStillResolves(t *testing.T) {
	cache, mr := newTestQuoteCache(t)
	mr.Close()

	provider := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"KRW=X": d("1390")}}
	r := NewRateResolver(provider, "KRW=X", d("1300"), cache)
	q := r.Quote(context.Background())
	assert.False(t, q.Fallback)
	assert.True(t, q.Rate.Equal(d("1390")))
}

func TestPriceResolver_Dispatch(t *testing.T) {
	naver := &fakeProvider{name: "naver", prices: map[string]decimal.Decimal{"005930": d("71500")}}
	yahoo := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"AAPL": d("189.8449")}}
	r := NewPriceResolver(naver, yahoo, nil, nil)
	ctx := context.Background()

	p := r.Resolve(ctx, "005930", types.CategoryDomestic)
	assert.True(t, p.Available)
	assert.Equal(t, "71500", p.Value.String())

	p = r.Resolve(ctx, "AAPL", types.CategoryOverseas)
	assert.True(t, p.Available)
	assert.Equal(t, "189.84", p.Value.String())

	assert.False(t, r.Resolve(ctx, "UNKNOWN", types.CategoryOverseas).Available)
	assert.False(t, r.Resolve(ctx, "005930", "").Available)
	assert.False(t, r.Resolve(ctx, "", types.CategoryDomestic).Available)
	assert.Equal(t, 1, naver.calls)
	assert.Equal(t, 2, yahoo.calls)
}

func TestPriceResolver_NonPositiveIsUnavailable(t *testing.T) {
	naver := &fakeProvider{name: "naver", prices: map[string]decimal.Decimal{"000000": decimal.Zero}}
	yahoo := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"PENNY": d("0.001")}}
	r := NewPriceResolver(naver, yahoo, nil, nil)

	assert.False(t, r.Resolve(context.Background(), "000000", types.CategoryDomestic).Available)
	assert.False(t, r.Resolve(context.Background(), "PENNY", types.CategoryOverseas).Available, "rounds to 0.00")
}

func TestPriceResolver_BreakerSkipsBrokenProvider(t *testing.T) {
	naver := &fakeProvider{name: "naver", err: errUpstream}
	yahoo := &fakeProvider{name: "yahoo", prices: map[string]decimal.Decimal{"AAPL": d("190")}}
	breakers := circuitbreaker.NewCircuitBreakerManager(2, time.Hour)
	r := NewPriceResolver(naver, yahoo, breakers, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.False(t, r.Resolve(ctx, "005930", types.CategoryDomestic).Available)
	}
	assert.Equal(t, 2, naver.calls)
	assert.Equal(t, circuitbreaker.StateOpen, breakers.Get("naver").GetState())

	assert.True(t, r.Resolve(ctx, "AAPL", types.CategoryOverseas).Available, "other provider unaffected")
}

func TestPriceResolver_BadCodesDoNotOpenBreaker(t *testing.T) {
	naver := &fakeProvider{
		name:     "naver",
		prices:   map[string]decimal.Decimal{"005930": d("71500")},
		codeErrs: map[string]error{},
	}
	for _, code := range []string{"BAD1", "BAD2", "BAD3", "BAD4", "BAD5"} {
		naver.codeErrs[code] = apperrors.NewParseError("naver quote page", "price node not found", nil)
	}
	breakers := circuitbreaker.NewCircuitBreakerManager(5, 2*time.Minute)
	r := NewPriceResolver(naver, &fakeProvider{name: "yahoo"}, breakers, nil)
	ctx := context.Background()

	for _, code := range []string{"BAD1", "BAD2", "BAD3", "BAD4", "BAD5"} {
		assert.False(t, r.Resolve(ctx, code, types.CategoryDomestic).Available)
	}
	assert.Equal(t, circuitbreaker.StateClosed, breakers.Get("naver").GetState())

	p := r.Resolve(ctx, "005930", types.CategoryDomestic)
	require.True(t, p.Available)
	assert.Equal(t, "71500", p.Value.String())
	assert.Equal(t, 6, naver.calls)
}

func TestPriceResolver_Cache(t *testing.T) {
	cache, mr := newTestQuoteCache(t)
	naver := &fakeProvider{name: "naver", prices: map[string]decimal.Decimal{"005930": d("71500")}}
	r := NewPriceResolver(naver, &fakeProvider{name: "yahoo"}, nil, cache)
	ctx := context.Background()

	assert.True(t, r.Resolve(ctx, "005930", types.CategoryDomestic).Available)
	assert.True(t, mr.Exists(storage.QuoteKey(types.CategoryDomestic, "005930")))

	p := r.Resolve(ctx, "005930", types.CategoryDomestic)
	assert.True(t, p.Available)
	assert.Equal(t, "71500", p.Value.String())
	assert.Equal(t, 1, naver.calls)
}

func TestDisplayAmount(t *testing.T) {
	assert.Equal(t, "₩71,500", displayAmount(d("71500"), "KRW"))
	assert.Equal(t, "$189.84", displayAmount(d("189.8449"), "USD"))
	assert.Equal(t, "12 ZZZ", displayAmount(d("12"), "ZZZ"))
}
