package utils

import "testing"

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize <= 0 || c.DialTimeout <= 0 || c.PingTimeout <= 0 {
		t.Fatalf("expected defaults to be applied: %+v", c)
	}
}
