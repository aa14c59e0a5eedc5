package service

import (
	"testing"
	"time"
)

func TestWindowLimiter_AllowsWithinLimit(t *testing.T) {
	l := NewWindowLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("1.2.3.4"); !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
}

func TestWindowLimiter_DeniesOverLimit(t *testing.T) {
	l := NewWindowLimiter(2, time.Minute)

	l.Allow("1.2.3.4")
	l.Allow("1.2.3.4")

	ok, retryAfter := l.Allow("1.2.3.4")
	if ok {
		t.Fatal("third call should be denied")
	}
	if retryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %v", retryAfter)
	}
}

func TestWindowLimiter_KeysAreIndependent(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)

	l.Allow("1.2.3.4")
	if ok, _ := l.Allow("5.6.7.8"); !ok {
		t.Error("other clients must not share the bucket")
	}
}

func TestWindowLimiter_ResetsAfterWindow(t *testing.T) {
	l := NewWindowLimiter(1, 20*time.Millisecond)

	l.Allow("1.2.3.4")
	if ok, _ := l.Allow("1.2.3.4"); ok {
		t.Fatal("second call inside window should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if ok, _ := l.Allow("1.2.3.4"); !ok {
		t.Error("call after window reset should be allowed")
	}
}
