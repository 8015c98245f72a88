package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/af-corp/mlapi/internal/telemetry"
)

// ErrCircuitOpen is returned while the history breaker is open.
var ErrCircuitOpen = errors.New("synthesis history unavailable: circuit open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // calls flow
	StateOpen                         // calls blocked
	StateHalfOpen                     // one probe allowed
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calls to a failing backend for a recovery interval,
// then lets a single probe through.
type CircuitBreaker struct {
	mu sync.Mutex

	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool

	failureThreshold int
	recoveryInterval time.Duration
	onTransition     func(CircuitState)
}

// NewCircuitBreaker creates a circuit breaker. onTransition may be nil.
func NewCircuitBreaker(failureThreshold int, recoveryInterval time.Duration, onTransition func(CircuitState)) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
		onTransition:     onTransition,
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState moves OPEN to HALF_OPEN once the recovery interval elapsed.
// Must be called with mu held.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.recoveryInterval {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	cb.state = to
	cb.probing = false
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if cb.onTransition != nil {
		cb.onTransition(to)
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// releaseProbe lets another call probe after an inconclusive one.
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.transition(StateClosed)
}

// BreakerStore guards a Store with a circuit breaker so an unreachable
// database costs one failed call per recovery interval instead of one per
// request.
type BreakerStore struct {
	inner   Store
	breaker *CircuitBreaker
}

func NewBreakerStore(inner Store, failureThreshold int, recoveryInterval time.Duration, metrics *telemetry.Metrics) *BreakerStore {
	return &BreakerStore{
		inner: inner,
		breaker: NewCircuitBreaker(failureThreshold, recoveryInterval, func(s CircuitState) {
			metrics.RecordBreakerTransition(s.String())
		}),
	}
}

func (s *BreakerStore) Breaker() *CircuitBreaker { return s.breaker }

func (s *BreakerStore) Get(ctx context.Context, inputDigest string) (*Record, error) {
	if !s.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	rec, err := s.inner.Get(ctx, inputDigest)
	s.observe(err)
	return rec, err
}

func (s *BreakerStore) Save(ctx context.Context, rec *Record) error {
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}
	err := s.inner.Save(ctx, rec)
	s.observe(err)
	return err
}

// observe records the call outcome. Cancellation by the caller says nothing
// about the backend.
func (s *BreakerStore) observe(err error) {
	switch {
	case err == nil:
		s.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
		s.breaker.releaseProbe()
	default:
		s.breaker.RecordFailure()
	}
}
