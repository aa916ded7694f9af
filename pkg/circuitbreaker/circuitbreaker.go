package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the breaker position: closed passes calls through, open
// rejects them outright, half-open probes with a bounded trickle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

type Config struct {
	// FailureThreshold consecutive failures trip the breaker open.
	FailureThreshold int
	// SuccessThreshold successes while half-open close it again.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MaxRequestsHalfOpen caps concurrent probes while half-open.
	MaxRequestsHalfOpen int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// CircuitBreaker protects a downstream dependency from being hammered
// while it is failing. Safe for concurrent use.
type CircuitBreaker struct {
	cfg Config

	mu          sync.RWMutex
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	changedAt   time.Time

	onChange func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:       cfg,
		state:     StateClosed,
		changedAt: time.Now(),
	}
}

// OnStateChange registers a callback fired on every transition. It runs
// on its own goroutine so a slow observer cannot hold the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs fn if the breaker admits the call and records its
// outcome. Rejected calls never invoke fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.admit() {
		return fmt.Errorf("circuit breaker is %s, request rejected", cb.GetState())
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return fmt.Errorf("circuit breaker execution failed: %w", err)
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.changedAt) < cb.cfg.Timeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probes++
		return true
	case StateHalfOpen:
		if cb.probes >= cb.cfg.MaxRequestsHalfOpen {
			return false
		}
		cb.probes++
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe is enough evidence the dependency is still down.
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes++

	if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.changedAt = time.Now()
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0

	if cb.onChange != nil {
		go cb.onChange(from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats is a snapshot of the breaker counters.
type Stats struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenRequests int
	LastFailureTime  time.Time
	StateChangeTime  time.Time
}

func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Stats{
		State:            cb.state,
		FailureCount:     cb.failures,
		SuccessCount:     cb.successes,
		HalfOpenRequests: cb.probes,
		LastFailureTime:  cb.lastFailure,
		StateChangeTime:  cb.changedAt,
	}
}

// Reset forces the breaker closed, discarding accumulated counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}
