package chatads

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's position in its state machine.
type BreakerState int

const (
	// StateClosed permits calls; consecutive failures are counted.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown since the last failure elapses.
	StateOpen
	// StateHalfOpen permits a trial call that decides between open and closed.
	StateHalfOpen
)

// String returns the wire representation used in health reports.
func (s BreakerState) String() string {
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

// Breaker is a per-client failure-tracking state machine. Availability checks
// and recordings race with each other under load, so every read-modify-write
// of state, counter and timestamp happens under one mutex.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	failureThreshold int
	cooldown         time.Duration

	// now is swappable so tests can move time instead of sleeping.
	now func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive arguments fall back to
// 5 failures and a 30 second cooldown.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Available reports whether a call may proceed. When the breaker is open and
// the cooldown has elapsed, the check itself moves the breaker to half-open
// and permits the trial call.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure counts a failed call. Reaching the threshold while closed
// opens the breaker; any failure while half-open reopens it and restarts the
// cooldown window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
	case StateOpen:
		// Already open; the refreshed lastFailure extends the window.
	}
}

// RecordSuccess counts a successful call. While closed it clears the
// consecutive-failure counter; while half-open it closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
	case StateOpen:
		// A success cannot arrive while open; nothing to record.
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastFailure = time.Time{}
}
