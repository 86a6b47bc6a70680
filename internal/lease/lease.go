// Package lease elects the single scheduler replica allowed to claim due
// reminders on a given tick.
package lease

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a time-bounded exclusive right to run the scheduler tick.
type Lease interface {
	// Acquire takes the lease, or renews it if this holder already owns it.
	// It returns false if another holder owns it.
	Acquire(ctx context.Context) (bool, error)

	// Release gives the lease up before it expires. Releasing a lease that
	// is not held is a no-op.
	Release(ctx context.Context) error

	// Held reports whether the last Acquire succeeded and its TTL has not
	// elapsed since.
	Held() bool
}

// Static is a Lease that is always granted. It is only correct when exactly
// one scheduler replica runs.
type Static struct{}

var _ Lease = Static{}

// Acquire always grants the lease.
func (Static) Acquire(context.Context) (bool, error) { return true, nil }
func (Static) Release(context.Context) error { return nil }
func (Static) Held() bool { return true }

var (
	renewScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return 0
	`)

	releaseScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		end
		return 0
	`)
)

// Redis is a Lease stored under one Redis key. The value is a token unique
// to this holder so that only the holder can renew or release it.
type Redis struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	heldUntil time.Time
}

var _ Lease = (*Redis)(nil)

// NewRedis creates a Redis lease on key that expires ttl after each
// successful Acquire.
func NewRedis(client redis.Cmdable, key string, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "redis_lease"), slog.String("lease_key", key)),
		now:    time.Now,
	}
}

// Acquire implements Lease.Acquire.
func (l *Redis) Acquire(ctx context.Context) (bool, error) {
	start := l.now()

	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		l.setHeld(time.Time{})
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
		if err != nil {
			l.setHeld(time.Time{})
			return false, fmt.Errorf("failed to renew lease: %w", err)
		}
		ok = n == 1
	}

	if !ok {
		if l.Held() {
			l.logger.Warn("lease lost to another holder")
		}
		l.setHeld(time.Time{})
		return false, nil
	}

	if !l.Held() {
		l.logger.Info("lease acquired")
	}
	l.setHeld(start.Add(l.ttl))
	return true, nil
}

// Release implements Lease.Release.
func (l *Redis) Release(ctx context.Context) error {
	l.setHeld(time.Time{})
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if n == 1 {
		l.logger.Info("lease released")
	}
	return nil
}

// Held implements Lease.Held.
func (l *Redis) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.heldUntil)
}

func (l *Redis) setHeld(until time.Time) {
	l.mu.Lock()
	l.heldUntil = until
	l.mu.Unlock()
}
