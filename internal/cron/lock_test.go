package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tellowai/admin-api-sub001/pkg/redis"
)

type leaseStore struct {
	held   map[string]*memoryLease
	err    error
	ttls   []time.Duration
	tokens int
}

func newLeaseStore() *leaseStore { return &leaseStore{held: map[string]*memoryLease{}} }

func (m *leaseStore) TryObtain(_ context.Context, key string, ttl time.Duration) (redis.Lease, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ttls = append(m.ttls, ttl)
	if _, ok := m.held[key]; ok {
		return nil, redis.ErrLockNotObtained
	}
	m.tokens++
	lease := &memoryLease{store: m, key: key, token: m.tokens}
	m.held[key] = lease
	return lease, nil
}

// expire drops the key as if its TTL ran out.
func (m *leaseStore) expire(key string) { delete(m.held, key) }

type memoryLease struct {
	store *leaseStore
	key   string
	token int
}

func (l *memoryLease) Release(context.Context) error {
	current, ok := l.store.held[l.key]
	if !ok || current.token != l.token {
		return redis.ErrLockNotHeld
	}
	delete(l.store.held, l.key)
	return nil
}

func TestRedisLockExclusiveAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	first, err := NewRedisLock(store, "genflow:cron:stale_generations", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "genflow:cron:stale_generations", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second instance must not acquire a held lock, ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.held["genflow:cron:stale_generations"]; !held {
		t.Fatal("non-owner release must not delete the key")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLockReleaseAfterExpiryKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	stale, _ := NewRedisLock(store, "k", 0)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	if store.ttls[0] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v", store.ttls[0])
	}

	store.expire("k")
	fresh, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := fresh.Acquire(ctx); !ok {
		t.Fatal("expected new owner after expiry")
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("expired lease release should be a no-op: %v", err)
	}
	if _, held := store.held["k"]; !held {
		t.Fatal("expired owner must not release the new owner's lock")
	}
}

func TestRedisLockErrors(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatal("expected locker required")
	}
	if _, err := NewRedisLock(newLeaseStore(), "", time.Second); err == nil {
		t.Fatal("expected key required")
	}
	store := newLeaseStore()
	store.err = errors.New("conn refused")
	lock, _ := NewRedisLock(store, "k", time.Second)
	if _, err := lock.Acquire(context.Background()); err == nil {
		t.Fatal("expected obtain error")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without a lease: %v", err)
	}
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail")
	}
	_ = lock.Release(ctx)
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}
