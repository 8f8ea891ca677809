package cachex

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThresholdWithinWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newBreaker(3, time.Minute, 10*time.Second)
	b.now = clock.Now

	if b.failure() || b.failure() {
		t.Fatal("breaker tripped before threshold")
	}
	if !b.failure() {
		t.Fatal("third consecutive failure should trip the breaker")
	}
	if !b.isOpen() {
		t.Fatal("breaker should be open")
	}
}

func TestBreakerWindowResetsConsecutiveCount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newBreaker(3, time.Minute, 10*time.Second)
	b.now = clock.Now

	b.failure()
	b.failure()
	clock.Advance(2 * time.Minute)
	if b.failure() {
		t.Fatal("stale failures outside the window should not count toward the threshold")
	}
	if b.isOpen() {
		t.Fatal("breaker should still be closed")
	}
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newBreaker(1, time.Minute, 10*time.Second)
	b.now = clock.Now

	b.failure()
	if b.allow() {
		t.Fatal("open breaker must deny calls before cooldown")
	}

	clock.Advance(11 * time.Second)
	if !b.allow() {
		t.Fatal("cooldown elapsed, one probe should be allowed")
	}
	if b.allow() {
		t.Fatal("only a single probe may run at a time")
	}

	if closed := b.success(); !closed {
		t.Fatal("successful probe should close the breaker")
	}
	if !b.allow() {
		t.Fatal("closed breaker should allow calls")
	}
}

func TestBreakerFailedProbeRestartsCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newBreaker(1, time.Minute, 10*time.Second)
	b.now = clock.Now

	b.failure()
	clock.Advance(11 * time.Second)
	if !b.allow() {
		t.Fatal("probe should be allowed after cooldown")
	}
	b.failure()

	if b.allow() {
		t.Fatal("failed probe should restart the cooldown")
	}
	clock.Advance(11 * time.Second)
	if !b.allow() {
		t.Fatal("next probe should be allowed after the restarted cooldown")
	}
}
