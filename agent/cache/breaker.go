package cachex

import (
	"sync"
	"time"
)

// breaker trips to local-only mode after threshold consecutive remote
// failures inside the sliding window. While open, allow returns true once
// per cooldown so a single probe can close it again.
type breaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	failures    int
	lastFailure time.Time
	open        bool
	openedAt    time.Time
	probing     bool
}

func newBreaker(threshold int, window, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.probing {
		return false
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.probing = true
		return true
	}
	return false
}

// failure records a remote failure and reports whether this call tripped the
// breaker open.
func (b *breaker) failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.probing {
		// Failed probe: stay open, restart the cooldown.
		b.probing = false
		b.openedAt = now
		b.lastFailure = now
		return false
	}

	if b.failures > 0 && now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now

	if !b.open && b.failures >= b.threshold {
		b.open = true
		b.openedAt = now
		return true
	}
	return false
}

// success records a remote success and reports whether it closed an open
// breaker.
func (b *breaker) success() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.open
	b.open = false
	b.probing = false
	b.failures = 0
	return wasOpen
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
