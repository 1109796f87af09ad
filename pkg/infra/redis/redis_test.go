package redis_wrapper

import (
	"testing"
	"time"
)

func TestOptions(t *testing.T) {
	cfg := &RedisConfig{
		ConnectionURL:      "redis://:secret@cache:6380/2",
		PoolSize:           7,
		DialTimeoutSeconds: 3,
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Errorf("unexpected address options %+v", opts)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != 3*time.Second {
		t.Errorf("unexpected pool options %d %v", opts.PoolSize, opts.DialTimeout)
	}
}

func TestInitRedisBadURL(t *testing.T) {
	if _, err := InitRedis(&RedisConfig{ConnectionURL: "http://nope"}); err == nil {
		t.Fatal("expected error for a non redis url")
	}
}
