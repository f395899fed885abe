package ratelimiter

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// FixedWindowRateLimiter allows limit requests per key in each window. Keys
// are user ids for authenticated routes and client IPs otherwise.
type FixedWindowRateLimiter struct {
	sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewFixedWindowLimiter(limit int, w time.Duration) *FixedWindowRateLimiter {
	rl := newLimiter(limit, w, time.Now)
	go rl.cleanup()
	return rl
}

func newLimiter(limit int, w time.Duration, now func() time.Time) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  w,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// cleanup drops expired windows so idle keys do not accumulate.
func (rl *FixedWindowRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) sweep() {
	rl.Lock()
	defer rl.Unlock()
	now := rl.now()
	for k, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, k)
		}
	}
}

// Allow reports whether key may proceed and, when it may not, how long until
// its window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.Lock()
	defer rl.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count < rl.limit {
		w.count++
		return true, 0
	}
	return false, w.start.Add(rl.window).Sub(now)
}

// Stop ends the cleanup goroutine.
func (rl *FixedWindowRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}
