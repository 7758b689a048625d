// Package resilience wraps the gateway's calls to external services with
// circuit breaking, bounded retries, and reconnection backoff.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's current mode.
type CircuitState int

const (
	StateClosed   CircuitState = iota // normal operation
	StateOpen                         // requests fail immediately
	StateHalfOpen                     // probing whether the service recovered
)

// CircuitBreaker stops hammering a failing dependency. After maxFailures
// consecutive failures the circuit opens; after resetTimeout it lets a few
// probe requests through, closing again once enough of them succeed.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.RWMutex
	state         CircuitState
	failureCount  int
	lastFailTime  time.Time
	halfOpenInUse int
	successCount  int
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        StateClosed,
	}
}

// Call runs fn under the breaker. While open it returns ErrCircuitOpen
// without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.RecordResult(err == nil)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailTime) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.halfOpenInUse = 1
			cb.successCount = 0
			return true
		}
		return false

	case StateHalfOpen:
		if cb.halfOpenInUse < cb.halfOpenMax {
			cb.halfOpenInUse++
			return true
		}
		return false
	}
	return false
}

// RecordResult feeds an outcome into the breaker. Call does this itself;
// callers that manage their own request flow use it directly.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		switch cb.state {
		case StateClosed:
			cb.failureCount = 0
		case StateHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.halfOpenMax {
				cb.state = StateClosed
				cb.failureCount = 0
				cb.halfOpenInUse = 0
				cb.successCount = 0
			}
		}
		return
	}

	cb.lastFailTime = time.Now()
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		// One failed probe reopens the circuit.
		cb.state = StateOpen
		cb.halfOpenInUse = 0
		cb.successCount = 0
	}
}

// GetState returns the breaker's current mode.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.halfOpenInUse = 0
	cb.successCount = 0
}
