package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh-api/internal/config"
)

func testLimit(burst int) config.RateLimit {
	return config.RateLimit{MaxRequests: 60, WindowSeconds: 60, Burst: burst}
}

func TestLocalLimiterBurstThenDeny(t *testing.T) {
	l := &LocalLimiter{buckets: map[string]*tokenBucket{}}
	ctx := context.Background()
	limit := testLimit(3)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "sync_push", "user-1", limit)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d denied, want allowed within burst", i+1)
		}
	}

	d, err := l.Allow(ctx, "sync_push", "user-1", limit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Error("4th request allowed, want denied after burst drained")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", d.RetryAfter)
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestLocalLimiterKeysAreIndependent(t *testing.T) {
	l := &LocalLimiter{buckets: map[string]*tokenBucket{}}
	ctx := context.Background()
	limit := testLimit(1)

	if d, _ := l.Allow(ctx, "sync_push", "user-1", limit); !d.Allowed {
		t.Fatal("user-1 first request denied")
	}
	if d, _ := l.Allow(ctx, "sync_push", "user-1", limit); d.Allowed {
		t.Fatal("user-1 second request allowed, bucket should be empty")
	}

	// A different user and a different scope each get fresh buckets.
	if d, _ := l.Allow(ctx, "sync_push", "user-2", limit); !d.Allowed {
		t.Error("user-2 should have its own bucket")
	}
	if d, _ := l.Allow(ctx, "sync_pull", "user-1", limit); !d.Allowed {
		t.Error("sync_pull should have its own bucket")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	// 100 tokens/second so the refill is observable without a long
	// sleep.
	tb := newTokenBucket(1, 100)

	if ok, _, _, _ := tb.take(); !ok {
		t.Fatal("first take denied")
	}
	if ok, _, _, _ := tb.take(); ok {
		t.Fatal("second take allowed, bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if ok, _, _, _ := tb.take(); !ok {
		t.Error("take after refill window denied, want allowed")
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	tb := newTokenBucket(2, 1000)
	time.Sleep(20 * time.Millisecond)

	// Refill must not exceed capacity no matter how long the idle gap.
	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _, _, _ := tb.take(); ok {
			allowed++
		}
	}
	if allowed > 3 { // capacity 2 plus at most ~1 token of refill drift
		t.Errorf("allowed %d takes, want at most 3", allowed)
	}
}
