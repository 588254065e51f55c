package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4", now) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("1.2.3.4", now) {
		t.Error("request over the cap should be rejected")
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	now := time.Now()

	if !rl.Allow("1.1.1.1", now) {
		t.Fatal("first client should be allowed")
	}
	if !rl.Allow("2.2.2.2", now) {
		t.Error("second client has its own counter")
	}
	if rl.Allow("1.1.1.1", now) {
		t.Error("first client is over its cap")
	}
}

func TestRateLimiterResetsNextWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	now := time.Now().Truncate(time.Second)

	if !rl.Allow("1.2.3.4", now) {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("1.2.3.4", now.Add(100*time.Millisecond)) {
		t.Error("second request in the same window should be rejected")
	}
	if !rl.Allow("1.2.3.4", now.Add(time.Second)) {
		t.Error("counter should reset in the next window")
	}
}
