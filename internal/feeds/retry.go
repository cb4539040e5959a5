// ABOUTME: Exponential backoff with jitter for retrying failed feed loads
// ABOUTME: Retry stops early on context cancellation or a non-retryable error

package feeds

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Default retry settings.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialDelay   = 5 * time.Second
	DefaultMaxDelay       = 2 * time.Minute
	DefaultMultiplier     = 2.0
	DefaultJitterFraction = 0.2
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts counts the first try. Zero uses DefaultMaxAttempts.
	MaxAttempts int

	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Multiplier grows the delay after each failure; must be >= 1.
	Multiplier float64

	// JitterFraction varies each delay by up to ±fraction. Zero disables jitter.
	JitterFraction float64
}

// DefaultRetryConfig returns the defaults with jitter enabled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    DefaultMaxAttempts,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     DefaultMultiplier,
		JitterFraction: DefaultJitterFraction,
	}
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		c.JitterFraction = 0
	}
}

// Delays returns the wait before each retry, without jitter.
func (c RetryConfig) Delays() []time.Duration {
	c.applyDefaults()

	delays := make([]time.Duration, 0, c.MaxAttempts-1)
	delay := c.InitialDelay
	for i := 1; i < c.MaxAttempts; i++ {
		delays = append(delays, delay)
		delay = min(time.Duration(float64(delay)*c.Multiplier), c.MaxDelay)
	}
	return delays
}

func (c RetryConfig) jitter(delay time.Duration) time.Duration {
	if c.JitterFraction == 0 {
		return delay
	}
	spread := float64(delay) * c.JitterFraction
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*spread)
}

// ErrPermanent marks an error that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Retry calls fn until it succeeds, attempts run out, ctx ends, or fn
// returns an error wrapping ErrPermanent or ErrTooLarge. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	cfg.applyDefaults()
	delays := cfg.Delays()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) || errors.Is(err, ErrTooLarge) || attempt >= len(delays) {
			return err
		}

		timer := time.NewTimer(cfg.jitter(delays[attempt]))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
