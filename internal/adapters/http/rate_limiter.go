package http

import (
	"sync"
	"time"

	"github.com/dkeye/rendezvous/internal/domain"
)

// SendRateLimiter is a sliding window over each sender's recent sends.
// A nil limiter allows everything.
type SendRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ClientID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewSendRateLimiter returns nil when limit is not positive.
func NewSendRateLimiter(limit int, interval time.Duration) *SendRateLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &SendRateLimiter{
		history:  make(map[domain.ClientID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *SendRateLimiter) Allow(id domain.ClientID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	rl.history[id] = append(fresh, now)
	rl.sweepLocked(windowStart)
	return true
}

// sweepLocked drops senders whose whole history fell out of the window.
func (rl *SendRateLimiter) sweepLocked(windowStart time.Time) {
	if len(rl.history) < 1024 {
		return
	}
	for id, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, id)
		}
	}
}
