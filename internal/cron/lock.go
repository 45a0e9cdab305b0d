package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tellowai/admin-api-sub001/pkg/redis"
)

const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseSource interface {
	TryObtain(ctx context.Context, key string, ttl time.Duration) (redis.Lease, error)
}

// RedisLock implements Lock on a redislock lease. The TTL must outlive one
// cycle or two replicas may overlap.
type RedisLock struct {
	locker leaseSource
	key    string
	ttl    time.Duration
	lease  redis.Lease
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(locker leaseSource, key string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, key: key, ttl: ttl}, nil
}

// Acquire tries once to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	lease, err := l.locker.TryObtain(ctx, l.key, l.ttl)
	if errors.Is(err, redis.ErrLockNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	l.lease = lease
	return true, nil
}

// Release frees the lock only if this instance still owns it. The owner check
// and delete run as one script inside redislock.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.lease == nil {
		return nil
	}
	lease := l.lease
	l.lease = nil
	if err := lease.Release(ctx); err != nil && !errors.Is(err, redis.ErrLockNotHeld) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// LocalLock serializes cycles inside one process. Used when redis is not
// configured and a single worker replica runs.
type LocalLock struct {
	held chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(chan struct{}, 1)}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	select {
	case l.held <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *LocalLock) Release(context.Context) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
