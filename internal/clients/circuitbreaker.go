package clients

import (
	"context"
	"sync"
	"time"

	"github.com/dspygo/simba/internal/simbaerr"
)

// CircuitState is one of the three states of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker guards a provider against repeated failures: it trips
// after N consecutive failures, stays open for a cooldown, then
// allows a single half-open probe.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	failureCount     int
	lastFailureTime  time.Time
	state            CircuitState
}

// NewCircuitBreaker creates a closed circuit breaker tripping after
// failureThreshold consecutive failures and cooling down for resetTimeout.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// allow reports whether a call may proceed, transitioning Open->HalfOpen
// once the cooldown elapses.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		return true
	case StateHalfOpen:
		// The probe is already in flight; reject until it resolves.
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
		}
		return
	}

	cb.state = StateClosed
	cb.failureCount = 0
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerRegistry holds one CircuitBreaker per provider name,
// shared process-wide so every client sharing a provider trips and
// recovers together.
type CircuitBreakerRegistry struct {
	mu               sync.Mutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	resetTimeout     time.Duration
}

// NewCircuitBreakerRegistry builds a registry whose breakers trip after
// failureThreshold consecutive failures per provider.
func NewCircuitBreakerRegistry(failureThreshold int, resetTimeout time.Duration) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

func (r *CircuitBreakerRegistry) breakerFor(provider string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[provider]
	if !ok {
		cb = NewCircuitBreaker(r.failureThreshold, r.resetTimeout)
		r.breakers[provider] = cb
	}
	return cb
}

// GuardedClient wraps a Client with the registry's per-provider circuit
// breaker.
type GuardedClient struct {
	Inner    Client
	Registry *CircuitBreakerRegistry
}

// NewGuardedClient builds a GuardedClient backed by registry.
func NewGuardedClient(inner Client, registry *CircuitBreakerRegistry) *GuardedClient {
	return &GuardedClient{Inner: inner, Registry: registry}
}

// Request implements Client, short-circuiting with KindCircuitOpen when
// the provider's breaker is open.
func (g *GuardedClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	cb := g.Registry.breakerFor(config.Provider)
	if !cb.allow() {
		return nil, simbaerr.New(simbaerr.KindCircuitOpen, "circuit breaker open for provider "+config.Provider)
	}

	resp, err := g.Inner.Request(ctx, messages, config)
	cb.recordResult(err)
	return resp, err
}
