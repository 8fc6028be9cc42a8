package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-sync/internal/errors"
)

var errUpstream = errors.New("upstream down")

func newTestBreaker(maxFailures int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	clock := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(&Config{Name: "yahoo", MaxFailures: maxFailures, Cooldown: cooldown})
	cb.now = func() time.Time { return clock }
	cb.lastStateChange = clock
	return cb, &clock
}

func failing(ctx context.Context) error {
	return errUpstream
}

func succeeding(ctx context.Context) error {
	return nil
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	// a success resets the streak
	require.NoError(t, cb.Execute(ctx, succeeding))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	require.Equal(t, StateOpen, cb.GetState())

	*clock = clock.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState(), "failed probe reopens")
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)

	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_RequestErrorsDoNotOpen(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(2, time.Minute)
	parseErr := apperrors.NewParseError("naver quote page", "price node not found", nil)
	notFound := apperrors.NewProviderStatusError("yahoo", http.StatusNotFound)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	for i := 0; i < 5; i++ {
		assert.Equal(t, parseErr, cb.Execute(ctx, func(ctx context.Context) error { return parseErr }))
		assert.Equal(t, notFound, cb.Execute(ctx, func(ctx context.Context) error { return notFound }))
	}
	assert.Equal(t, StateClosed, cb.GetState())

	// the provider answered, so the outage streak starts over
	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestIsOutage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "uncategorized", err: errUpstream, want: true},
		{name: "transport", err: apperrors.NewProviderError("naver", errUpstream), want: true},
		{name: "timeout", err: apperrors.NewProviderTimeoutError("yahoo", nil), want: true},
		{name: "rate limited", err: apperrors.NewProviderStatusError("yahoo", http.StatusTooManyRequests), want: true},
		{name: "server error", err: apperrors.NewProviderStatusError("naver", http.StatusServiceUnavailable), want: true},
		{name: "unknown code", err: apperrors.NewProviderStatusError("yahoo", http.StatusNotFound), want: false},
		{name: "parse", err: apperrors.NewParseError("yahoo chart", "no close in series", nil), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOutage(tt.err))
		})
	}
}

func TestCircuitBreakerManager(t *testing.T) {
	m := NewCircuitBreakerManager(2, time.Minute)
	naver := m.Get("naver")
	assert.Same(t, naver, m.Get("naver"))
	assert.NotSame(t, naver, m.Get("yahoo"))

	assert.Equal(t, map[string]State{"naver": StateClosed, "yahoo": StateClosed}, m.States())
}
