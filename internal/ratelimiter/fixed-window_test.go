package ratelimiter

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(2, time.Minute, clock.now)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("u1"); !ok {
			t.Fatalf("request %d denied", i+1)
		}
	}

	clock.advance(20 * time.Second)
	ok, retry := rl.Allow("u1")
	if ok {
		t.Fatal("third request in window allowed")
	}
	if retry != 40*time.Second {
		t.Fatalf("retry after = %v, want 40s", retry)
	}

	if ok, _ := rl.Allow("u2"); !ok {
		t.Fatal("other key limited")
	}

	clock.advance(40 * time.Second)
	if ok, _ := rl.Allow("u1"); !ok {
		t.Fatal("request after window reset denied")
	}
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(1, time.Minute, clock.now)

	rl.Allow("a")
	clock.advance(30 * time.Second)
	rl.Allow("b")
	clock.advance(30 * time.Second)
	rl.sweep()

	if _, ok := rl.clients["a"]; ok {
		t.Fatal("expired window kept")
	}
	if _, ok := rl.clients["b"]; !ok {
		t.Fatal("live window dropped")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewFixedWindowLimiter(1, time.Millisecond)
	rl.Stop()
	rl.Stop()
}
