// Package cooldown implements a per-endpoint rate limiter which sheds
// duplicate expensive requests. An endpoint is on cooldown until a
// fixed interval has passed since its last accepted request.
package cooldown

import (
	"sync"
	"time"
)

// Limiter tracks the last accepted request time per endpoint name.
// Names are created lazily on first use and live for the process
// lifetime. Safe for concurrent use.
type Limiter struct {
	interval time.Duration
	mtx      sync.Mutex
	last     map[string]time.Time
	now      func() time.Time
}

// NewLimiter returns a Limiter with the given cooldown interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		last:     map[string]time.Time{},
		now:      time.Now,
	}
}

// IsOnCooldown reports whether the named endpoint is still within its
// cooldown window. A name that was never requested is not on cooldown.
func (l *Limiter) IsOnCooldown(name string) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	last, ok := l.last[name]
	if !ok {
		return false
	}
	return l.now().Sub(last) < l.interval
}

// MarkRequested records an accepted request for the named endpoint.
func (l *Limiter) MarkRequested(name string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.last[name] = l.now()
}

// Remaining returns how long the named endpoint stays on cooldown,
// zero if it is not on cooldown.
func (l *Limiter) Remaining(name string) time.Duration {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	last, ok := l.last[name]
	if !ok {
		return 0
	}
	remaining := l.interval - l.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
