package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duynhne/profile-service/config"
)

func TestKeyNamespacing(t *testing.T) {
	t.Parallel()

	if got := key("login_attempts", "10.0.0.1"); got != "login_attempts:10.0.0.1" {
		t.Fatalf("key = %q", got)
	}
}

func TestNewRequiresAddrs(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), config.RedisConfig{}); err == nil {
		t.Fatal("New with no addrs succeeded")
	}
}

func TestUnreachableServerSurfacesErrors(t *testing.T) {
	t.Parallel()

	// Port 1 is never a Redis server; dialing fails fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewWithClient(client)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err == nil {
		t.Fatal("Ping succeeded against closed port")
	}
	if _, err := c.SetNX(ctx, "revoked_refresh", "jti", 1, time.Minute); err == nil {
		t.Fatal("SetNX succeeded against closed port")
	}
	if _, err := c.IncrWithExpire(ctx, "login_attempts", "ip", time.Minute); err == nil {
		t.Fatal("IncrWithExpire succeeded against closed port")
	}
}
