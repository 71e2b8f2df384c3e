package api

import (
	"testing"
	"time"
)

func TestTurnLimiterPerKey(t *testing.T) {
	l := NewTurnLimiter(1, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third immediate turn should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("other operators have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("token should refill after a second")
	}
}

func TestTurnLimiterEvict(t *testing.T) {
	l := NewTurnLimiter(1, 1)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	l.Allow("idle")
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	if n := l.evict(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 evicted visitor, got %d", n)
	}
	if _, ok := l.visitors["fresh"]; !ok {
		t.Fatal("recent visitor should survive")
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *TurnLimiter
	if !NewTurnLimiter(0, 5).Allow("x") || !l.Allow("x") {
		t.Fatal("disabled limiter should allow everything")
	}
}
