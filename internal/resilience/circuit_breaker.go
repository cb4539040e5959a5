// ABOUTME: Circuit breaker guarding calls to external collaborators such as Redis
// ABOUTME: Opens after consecutive failures, probes in half-open, reports transitions

package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults applied to zero config fields.
const (
	DefaultMaxFailures      = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultHalfOpenMaxCalls = 1
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
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

// ErrCircuitOpen is returned without calling fn while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a breaker.
type CircuitBreakerConfig struct {
	Name string

	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of concurrent probes allowed.
	HalfOpenMaxCalls int

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error except context cancellation.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// Statistics is a snapshot of breaker counters.
type Statistics struct {
	State               State
	TotalRequests       int64
	Successes           int64
	Failures            int64
	Rejections          int64
	ConsecutiveFailures int
	LastFailureTime     time.Time
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	lastFailureTime     time.Time
	halfOpenCalls       int

	totalRequests atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	rejections    atomic.Int64
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultMaxFailures
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.totalRequests.Add(1)

	if !cb.allow() {
		cb.rejections.Add(1)
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current state, moving open to half-open once the reset
// timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	from, to := cb.advanceLocked()
	state := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return state
}

// Statistics returns a snapshot of the counters.
func (cb *CircuitBreaker) Statistics() Statistics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Statistics{
		State:               cb.state,
		TotalRequests:       cb.totalRequests.Load(),
		Successes:           cb.successes.Load(),
		Failures:            cb.failures.Load(),
		Rejections:          cb.rejections.Load(),
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailureTime:     cb.lastFailureTime,
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.halfOpenCalls = 0
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

// advanceLocked applies the timed open to half-open transition.
func (cb *CircuitBreaker) advanceLocked() (State, State) {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		return StateOpen, StateHalfOpen
	}
	return cb.state, cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	from, to := cb.advanceLocked()

	allowed := false
	switch cb.state {
	case StateClosed:
		allowed = true
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			allowed = true
		}
	}
	cb.mu.Unlock()

	cb.notify(from, to)
	return allowed
}

func (cb *CircuitBreaker) record(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	from := cb.state
	if failed {
		cb.failures.Add(1)
		cb.consecutiveFailures++
		cb.lastFailureTime = cb.now()

		if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.MaxFailures {
			cb.state = StateOpen
			cb.openedAt = cb.lastFailureTime
			cb.halfOpenCalls = 0
		}
	} else {
		cb.successes.Add(1)
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.halfOpenCalls = 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
