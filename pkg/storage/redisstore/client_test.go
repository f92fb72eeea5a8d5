package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	store := &Store{store: mock}

	if _, err := store.Get(ctx, "florencebot_guest_cart"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "florencebot_guest_cart", []byte(`{"items":[]}`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok := mock.data["nc:local:florencebot_guest_cart"]; !ok {
		t.Fatalf("expected namespaced key, got %v", mock.data)
	}
	if mock.lastTTL != 0 {
		t.Fatalf("local entries must not expire, got ttl %s", mock.lastTTL)
	}

	got, err := store.Get(ctx, "florencebot_guest_cart")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != `{"items":[]}` {
		t.Fatalf("unexpected value %q", got)
	}

	if err := store.Delete(ctx, "florencebot_guest_cart"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "florencebot_guest_cart"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestUninitializedStore(t *testing.T) {
	store := &Store{}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for uninitialized store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close without client should be a no-op: %v", err)
	}
}

func TestKeyBuilder(t *testing.T) {
	store := &Store{}
	if got := store.LocalKey("accessToken"); got != "nc:local:accessToken" {
		t.Fatalf("unexpected local key %s", got)
	}
	if got := buildKey("local", " ", "x"); got != "nc:local:x" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6380",
		DB:       2,
		PoolSize: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.DialTimeout != time.Second {
		t.Fatalf("url options not applied: %+v", opts)
	}
}

type mockCmdable struct {
	data    map[string]string
	lastTTL time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.lastTTL = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
