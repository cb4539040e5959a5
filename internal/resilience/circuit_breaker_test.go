// ABOUTME: Tests for the circuit breaker state machine
// ABOUTME: Uses an injected clock to drive open, half-open, and closed transitions

package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.config.MaxFailures != DefaultMaxFailures {
		t.Errorf("MaxFailures = %d, want %d", cb.config.MaxFailures, DefaultMaxFailures)
	}
	if cb.config.ResetTimeout != DefaultResetTimeout {
		t.Errorf("ResetTimeout = %v, want %v", cb.config.ResetTimeout, DefaultResetTimeout)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	// A success resets the streak.
	_ = cb.Execute(ctx, succeed)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed after broken streak", cb.State())
	}

	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("Execute() while open = %v (called %v), want ErrCircuitOpen", err, called)
	}
	if got := cb.Statistics().Rejections; got != 1 {
		t.Errorf("Rejections = %d, want 1", got)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		probe     func(context.Context) error
		wantState State
	}{
		{name: "probe succeeds", probe: succeed, wantState: StateClosed},
		{name: "probe fails", probe: fail, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
			ctx := context.Background()

			_ = cb.Execute(ctx, fail)
			clock.Advance(59 * time.Second)
			if cb.State() != StateOpen {
				t.Fatalf("State() = %v before timeout, want open", cb.State())
			}

			clock.Advance(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("State() = %v after timeout, want half-open", cb.State())
			}

			_ = cb.Execute(ctx, tt.probe)
			if got := cb.State(); got != tt.wantState {
				t.Errorf("State() after probe = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errBoom) },
	})
	_ = cb.Execute(context.Background(), fail)
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed for ignored error", cb.State())
	}

	def, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1})
	_ = def.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if def.State() != StateClosed {
		t.Errorf("State() = %v, want closed after cancellation", def.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var transitions []string
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		Name:         "redis-lock",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)
	_ = cb.Execute(ctx, succeed)

	want := []string{"redis-lock:closed->open", "redis-lock:open->half-open", "redis-lock:half-open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_ResetAndStatistics(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	stats := cb.Statistics()
	if stats.TotalRequests != 3 || stats.Successes != 1 || stats.Failures != 2 || stats.State != StateOpen {
		t.Errorf("Statistics() = %+v", stats)
	}

	cb.Reset()
	if cb.State() != StateClosed || cb.Statistics().ConsecutiveFailures != 0 {
		t.Errorf("after Reset state = %v", cb.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
