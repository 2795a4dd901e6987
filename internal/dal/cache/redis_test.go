package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestGenerateKey(t *testing.T) {
	c := NewCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "checkout-svc")
	defer c.Close()

	if got := c.GenerateKey("checkout", "abc-123"); got != "checkout-svc:checkout:abc-123" {
		t.Errorf("GenerateKey = %q", got)
	}
}
