// internal/transport/ratelimit.go
package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SenderLimiter throttles inbound messages per sender so one flooding chat
// cannot starve the serial dispatcher.
type SenderLimiter struct {
	mu       sync.Mutex
	limiters map[string]*senderEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSenderLimiter allows perMinute messages per sender with the given burst.
// perMinute <= 0 returns nil, which allows everything.
func NewSenderLimiter(perMinute, burst int) *SenderLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &SenderLimiter{
		limiters: make(map[string]*senderEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether sender may send another message now.
func (l *SenderLimiter) Allow(sender string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[sender]
	if !ok {
		entry = &senderEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[sender] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Prune drops limiters for senders idle longer than the idle window and
// returns how many were removed.
func (l *SenderLimiter) Prune() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	removed := 0
	for sender, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, sender)
			removed++
		}
	}
	return removed
}
