package responder

import (
	"sync"
	"time"
)

const rateLimitWindow = time.Minute

// rateLimiter enforces a sliding-window per-author message budget. It is
// the only state shared between concurrent response cycles.
type rateLimiter struct {
	mu          sync.Mutex
	limit       int
	authorTimes map[string][]time.Time
	lastCleanup time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:       limit,
		authorTimes: make(map[string][]time.Time),
		lastCleanup: time.Now(),
	}
}

// allow records an accepted message from authorID and reports whether it
// fits the per-minute budget. A limit of zero disables limiting.
func (l *rateLimiter) allow(authorID string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)

	// Periodically drop authors who have gone quiet.
	if now.Sub(l.lastCleanup) > 5*rateLimitWindow {
		for id, times := range l.authorTimes {
			if len(times) == 0 || times[len(times)-1].Before(cutoff) {
				delete(l.authorTimes, id)
			}
		}
		l.lastCleanup = now
	}

	times := l.authorTimes[authorID]
	recent := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.authorTimes[authorID] = recent
		return false
	}

	l.authorTimes[authorID] = append(recent, now)
	return true
}
