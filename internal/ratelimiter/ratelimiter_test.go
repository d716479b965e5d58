package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestAllow verifies that Allow() enforces the configured rate.
func TestAllow(t *testing.T) {
	// 10 ops/s, burst of 10
	limiter := New(10, 10)

	// The whole burst should be allowed immediately.
	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("op %d should be allowed (within burst)", i)
		}
	}

	// Bucket is empty now.
	if limiter.Allow() {
		t.Fatal("op should be limited after burst exhausted")
	}

	// One token replenishes after 100ms at 10 ops/s.
	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("op should be allowed after replenishment")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	limiter := New(10, 1)

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second wait returned too fast: %v", elapsed)
	}
}

// TestWaitCancellation verifies that Wait() respects context cancellation.
func TestWaitCancellation(t *testing.T) {
	limiter := New(1, 1)
	limiter.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("wait should fail when the context expires first")
	}
}

// TestUnlimited verifies that a zero rate disables limiting.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 10_000; i++ {
		if !limiter.Allow() {
			t.Fatalf("op %d limited under unlimited configuration", i)
		}
	}
}
