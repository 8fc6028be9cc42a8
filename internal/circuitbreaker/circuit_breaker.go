// Package circuitbreaker stops calling a quote provider after repeated failures
// and probes it again once a cooldown has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/portfolio-sync/internal/errors"
	"github.com/portfolio-sync/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means one probe request is allowed through
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrProbeInFlight is returned while the half-open probe has not finished
var ErrProbeInFlight = errors.New("circuit breaker probe in flight")

// Config configures a circuit breaker
type Config struct {
	Name        string
	MaxFailures int           // consecutive failures before opening
	Cooldown    time.Duration // time to stay open before probing

	// IsFailure decides which errors count toward MaxFailures.
	// Defaults to IsOutage.
	IsFailure func(error) bool
}

// IsOutage reports whether err says the provider itself is unhealthy:
// transport failures, timeouts, 429 and 5xx answers. Errors about a single
// request, such as an unparsable page or a 404 for an unknown code, are not outages.
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.Categorize(err) == nil {
		return true
	}
	return apperrors.IsRetryable(err)
}

// CircuitBreaker implements the circuit breaker pattern over consecutive failures
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	isFailure   func(error) bool
	now         func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	probing          bool
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	maxFailures := config.MaxFailures
	if maxFailures < 1 {
		maxFailures = 1
	}
	isFailure := config.IsFailure
	if isFailure == nil {
		isFailure = IsOutage
	}
	return &CircuitBreaker{
		name:            config.Name,
		maxFailures:     maxFailures,
		cooldown:        config.Cooldown,
		isFailure:       isFailure,
		now:             time.Now,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute executes a function with circuit breaker protection.
// Context cancellation is not counted as a provider failure, and errors
// rejected by IsFailure count as an answer from a healthy provider.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterRequest(ctx, err)
	return err
}

// beforeRequest checks if a request can be executed
func (cb *CircuitBreaker) beforeRequest(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"circuitBreaker": cb.name,
			"state":          StateHalfOpen,
		}).Info("Circuit breaker transitioning to half-open")
		return nil

	case StateHalfOpen:
		if cb.probing {
			return ErrProbeInFlight
		}
		cb.probing = true
		return nil

	default:
		return nil
	}
}

// afterRequest records the result of a request
func (cb *CircuitBreaker) afterRequest(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
		return
	}

	logger := logging.FromContext(ctx).WithField("circuitBreaker", cb.name)

	if err == nil || !cb.isFailure(err) {
		if cb.state == StateHalfOpen {
			logger.WithField("state", StateClosed).Info("Circuit breaker closed after successful probe")
		}
		cb.consecutiveFails = 0
		if cb.state != StateClosed {
			cb.setState(StateClosed)
		}
		return
	}

	cb.consecutiveFails++
	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxFailures {
			cb.setState(StateOpen)
			logger.WithFields(map[string]interface{}{
				"state":            StateOpen,
				"consecutiveFails": cb.consecutiveFails,
				"cooldown":         cb.cooldown.String(),
			}).Warn("Circuit breaker opened due to failures")
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		logger.WithField("state", StateOpen).Warn("Circuit breaker reopened after failed probe")
	}
}

// setState changes the circuit breaker state
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = cb.now()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerManager manages one circuit breaker per provider
type CircuitBreakerManager struct {
	defaults Config
	breakers map[string]*CircuitBreaker
	mu       sync.Mutex
}

// NewCircuitBreakerManager creates a manager whose breakers share maxFailures and cooldown
func NewCircuitBreakerManager(maxFailures int, cooldown time.Duration) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		defaults: Config{MaxFailures: maxFailures, Cooldown: cooldown},
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use
func (cbm *CircuitBreakerManager) Get(name string) *CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if cb, exists := cbm.breakers[name]; exists {
		return cb
	}

	cfg := cbm.defaults
	cfg.Name = name
	cb := NewCircuitBreaker(&cfg)
	cbm.breakers[name] = cb
	return cb
}

// States returns the current state of every breaker
func (cbm *CircuitBreakerManager) States() map[string]State {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	result := make(map[string]State, len(cbm.breakers))
	for name, cb := range cbm.breakers {
		result[name] = cb.GetState()
	}
	return result
}
