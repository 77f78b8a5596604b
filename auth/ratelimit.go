package auth

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

const pruneThreshold = 1024

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	limit rate.Limit
	burst int
	clock clock.Clock

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLoginLimiter allows perMinute attempts per IP with the given burst.
func NewLoginLimiter(perMinute, burst int, clk clock.Clock) *LoginLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &LoginLimiter{
		limit:    rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst:    burst,
		clock:    clk,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether ip may attempt a login now.
func (l *LoginLimiter) Allow(ip string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= pruneThreshold {
			l.prune(now)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()

	return lim.AllowN(now, 1)
}

// prune drops limiters whose bucket has refilled; they carry no state a new
// limiter would not have. Callers hold l.mu.
func (l *LoginLimiter) prune(now time.Time) {
	for ip, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, ip)
		}
	}
}

func (l *LoginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
