package classify

import (
	"sync"
	"time"
)

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards the AI classifier call. Zero value is not usable;
// construct with NewCircuitBreaker.
type CircuitBreaker struct {
	failureThreshold int
	successThreshold int
	timeout          time.Duration

	mu                sync.Mutex
	state             BreakerState
	consecutiveFails  int
	consecutiveOK     int
	lastFailure       time.Time
}

func NewCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            StateClosed,
	}
}

// DefaultCircuitBreaker matches the thresholds used in production: five
// consecutive failures trip it, two consecutive successes in half-open
// close it, and it stays open for one minute.
func DefaultCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreaker(5, 2, 60*time.Second)
}

// CanRequest reports whether the caller may attempt an AI call right now.
// Calling it while OPEN may flip the breaker to HALF_OPEN as a side effect
// once the timeout has elapsed.
func (b *CircuitBreaker) CanRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) >= b.timeout {
			b.state = StateHalfOpen
			b.consecutiveOK = 0
			return true
		}
		return false
	default:
		return false
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.consecutiveOK++
		if b.consecutiveOK >= b.successThreshold {
			b.state = StateClosed
			b.consecutiveFails = 0
			b.consecutiveOK = 0
		}
	}
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			b.state = StateOpen
			b.lastFailure = time.Now()
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.lastFailure = time.Now()
		b.consecutiveOK = 0
	}
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFails = 0
	b.consecutiveOK = 0
}
