package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

var (
	// ErrLockNotObtained is returned when another holder owns the key.
	ErrLockNotObtained = redislock.ErrNotObtained
	// ErrLockNotHeld is returned by Release once the TTL has expired.
	ErrLockNotHeld = redislock.ErrLockNotHeld
)

// Lease is a held lock. Release is safe to call once the TTL expired.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived, owner-checked locks backed by redislock.
type Locker struct {
	client  *redislock.Client
	retries int
	backoff time.Duration
}

// NewLocker builds a Locker on the client's connection. Obtain retries a few
// times with linear backoff before giving up.
func NewLocker(c *Client) (*Locker, error) {
	if c == nil || c.raw == nil {
		return nil, errors.New("redis client required for locker")
	}
	return &Locker{
		client:  redislock.New(c.raw),
		retries: 5,
		backoff: 50 * time.Millisecond,
	}, nil
}

// Obtain acquires key for ttl. ErrLockNotObtained means the key is held.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	return l.obtain(ctx, key, ttl, redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries))
}

// TryObtain makes a single attempt. Scheduled jobs use it so a busy key
// skips the cycle instead of waiting.
func (l *Locker) TryObtain(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	return l.obtain(ctx, key, ttl, redislock.NoRetry())
}

func (l *Locker) obtain(ctx context.Context, key string, ttl time.Duration, retry redislock.RetryStrategy) (Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("locker not initialized")
	}
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: retry})
	if err != nil {
		return nil, err
	}
	return lock, nil
}
