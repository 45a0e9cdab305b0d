package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tellowai/admin-api-sub001/pkg/config"
)

func TestPing(t *testing.T) {
	ctx := context.Background()
	if err := (&Client{store: stubPinger{}}).Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	down := &Client{store: stubPinger{err: errors.New("connection refused")}}
	if err := down.Ping(ctx); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if _, err := NewLocker(client); err == nil {
		t.Fatal("expected locker to require a connection")
	}
	var locker *Locker
	if _, err := locker.Obtain(context.Background(), "k", time.Second); err == nil {
		t.Fatal("expected nil locker error")
	}
	if _, err := locker.TryObtain(context.Background(), "k", time.Second); err == nil {
		t.Fatal("expected nil locker error")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing address error")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.GenerationLockKey("gen-1"); got != "genflow:lock:generation:gen-1" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.CronLockKey("stale_generations"); got != "genflow:cron:stale_generations" {
		t.Fatalf("unexpected cron key %s", got)
	}
	if got := client.CronLockKey(""); got != "genflow:cron" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) *redis.StatusCmd {
	if p.err != nil {
		return redis.NewStatusResult("", p.err)
	}
	return redis.NewStatusResult("PONG", nil)
}
