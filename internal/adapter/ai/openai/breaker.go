package openai

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit state guarding upstream calls.
type BreakerState int

const (
	// StateClosed lets every call through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown passes.
	StateOpen
	// StateHalfOpen lets a single trial call through.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker opens after maxFailures consecutive failures so a struggling
// provider is not hammered by every incoming request. A nil Breaker or one with
// maxFailures <= 0 never opens.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	state    BreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker constructs a closed breaker.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed, moving an expired open circuit to half-open.
func (b *Breaker) Allow() bool {
	if b == nil || b.maxFailures <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.trial = true
		slog.Info("ai circuit half-open", slog.Duration("cooldown", b.cooldown))
		return true
	case StateHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	default:
		return true
	}
}

// Success closes the circuit.
func (b *Breaker) Success() {
	if b == nil || b.maxFailures <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		slog.Info("ai circuit closed")
	}
	b.state = StateClosed
	b.failures = 0
	b.trial = false
}

// Failure records a failed call and opens the circuit once the threshold is reached.
func (b *Breaker) Failure() {
	if b == nil || b.maxFailures <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.trial = false
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			slog.Warn("ai circuit opened", slog.Int("consecutive_failures", b.failures))
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Release settles a call whose outcome says nothing about upstream health.
// A half-open trial ending this way reopens the circuit with its original
// opening time, so the next Allow admits a new trial right away.
func (b *Breaker) Release() {
	if b == nil || b.maxFailures <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.trial = false
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
