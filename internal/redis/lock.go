// ABOUTME: Redis per-file lock built on SET NX PX with token-checked renew and release
// ABOUTME: Serializes concurrent scans of the same file handled by the daemon

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/resilience"
)

// ErrLockTimeout is returned when the lock stays held past the wait budget.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's TTL only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LockConfig holds lock timing.
type LockConfig struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration

	// Wait is the maximum time Acquire polls before giving up.
	Wait time.Duration

	// RetryInterval between acquisition attempts.
	RetryInterval time.Duration

	// RenewInterval is how often a held lock has its TTL pushed back.
	// Defaults to a third of TTL.
	RenewInterval time.Duration
}

func (c *LockConfig) setDefaults() {
	if c.TTL == 0 {
		c.TTL = 2 * time.Minute
	}
	if c.Wait == 0 {
		c.Wait = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 50 * time.Millisecond
	}
	if c.RenewInterval <= 0 || c.RenewInterval >= c.TTL {
		c.RenewInterval = c.TTL / 3
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = time.Millisecond
	}
}

// FileLocker hands out per-file locks. Redis calls go through a circuit
// breaker so an unreachable server fails scans fast instead of stalling them.
type FileLocker struct {
	client  *Client
	breaker *resilience.CircuitBreaker
	config  LockConfig
}

// NewFileLocker creates a locker. A nil breaker gets the default configuration.
func NewFileLocker(client *Client, breaker *resilience.CircuitBreaker, cfg LockConfig) *FileLocker {
	cfg.setDefaults()
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "redis-lock"})
	}
	return &FileLocker{client: client, breaker: breaker, config: cfg}
}

// LockKey returns the Redis key guarding fileID.
func (l *FileLocker) LockKey(fileID string) string {
	return l.client.PrefixedKey("lock:file:" + fileID)
}

// Lock blocks until the file's lock is held, the wait budget runs out, or ctx
// ends. While held, the TTL is renewed in the background so a long scan keeps
// exclusive ownership. The returned func stops renewal and releases the lock;
// extra calls are no-ops.
func (l *FileLocker) Lock(ctx context.Context, fileID string) (func(), error) {
	key := l.LockKey(fileID)
	token := uuid.New().String()

	waitCtx, cancel := context.WithTimeout(ctx, l.config.Wait)
	defer cancel()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		var acquired bool
		err := l.breaker.Execute(waitCtx, func(ctx context.Context) error {
			ok, err := l.client.rdb.SetNX(ctx, key, token, l.config.TTL).Result()
			acquired = ok
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if acquired {
			return l.hold(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fileID)
		case <-ticker.C:
		}
	}
}

// hold starts the renewal loop and returns its idempotent release func.
func (l *FileLocker) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(stop, key, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(key, token)
		})
	}
}

// renew pushes the TTL back every RenewInterval until stop closes or the key
// no longer carries token. Transient errors are retried on the next tick.
func (l *FileLocker) renew(stop <-chan struct{}, key, token string) {
	ticker := time.NewTicker(l.config.RenewInterval)
	defer ticker.Stop()

	ttl := l.config.TTL.Milliseconds()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		var owned bool
		ctx, cancel := context.WithTimeout(context.Background(), l.config.RenewInterval)
		err := l.breaker.Execute(ctx, func(ctx context.Context) error {
			n, err := renewScript.Run(ctx, l.client.rdb, []string{key}, token, ttl).Int64()
			owned = n == 1
			return err
		})
		cancel()
		if err == nil && !owned {
			return
		}
	}
}

// release runs detached from the scan context so a cancelled request still
// frees the lock.
func (l *FileLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = l.breaker.Execute(ctx, func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err()
	})
}

// BreakerState exposes the breaker state for health reporting.
func (l *FileLocker) BreakerState() resilience.State {
	return l.breaker.State()
}

// BreakerStatistics exposes the breaker counters for metrics.
func (l *FileLocker) BreakerStatistics() resilience.Statistics {
	return l.breaker.Statistics()
}
