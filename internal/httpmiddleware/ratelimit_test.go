package httpmiddleware

import (
	"testing"
	"time"
)

func TestAllowWithinCapacity(t *testing.T) {
	l := NewTokenBucket(3, 60)
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatalf("request over capacity should be rejected")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewTokenBucket(1, 60)
	if !l.allow("10.0.0.1") {
		t.Fatalf("first key should be allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Fatalf("second key should have its own bucket")
	}
}

func TestRefill(t *testing.T) {
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return base }

	l.allow("10.0.0.1")
	l.allow("10.0.0.1")
	if l.allow("10.0.0.1") {
		t.Fatalf("bucket should be empty")
	}

	l.now = func() time.Time { return base.Add(2 * time.Second) }
	if !l.allow("10.0.0.1") {
		t.Fatalf("bucket should refill at one token per second")
	}
}
